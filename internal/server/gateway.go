package server

import (
	gatewaydomain "github.com/gainsai/gains-backend/internal/gateway/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) Claude(c *gin.Context) {
	var req gatewaydomain.ImageCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	content, err := s.claude.Complete(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gatewaydomain.CompletionResponse{Content: content})
}

func (s *Server) Perplexity(c *gin.Context) {
	var req gatewaydomain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	content, err := s.perplexity.Chat(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gatewaydomain.CompletionResponse{Content: content})
}
