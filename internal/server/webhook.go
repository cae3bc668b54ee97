package server

import (
	"errors"
	"io"

	webhookdomain "github.com/gainsai/gains-backend/internal/webhook/domain"
	"github.com/gin-gonic/gin"
)

// RevenueCatWebhook acknowledges every accepted delivery with 200. Only auth
// failures and internal faults return an error status, so the provider
// retries nothing else.
func (s *Server) RevenueCatWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, errors.Join(ErrInternal, err))
		return
	}

	outcome, err := s.webhookSvc.Ingest(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, webhookdomain.ErrUnauthorized) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, errors.Join(ErrInternal, err))
		return
	}

	respondData(c, outcome.Acknowledgement())
}
