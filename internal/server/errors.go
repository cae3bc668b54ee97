package server

import (
	"errors"
	"net/http"

	"github.com/gainsai/gains-backend/internal/db"
	gatewaydomain "github.com/gainsai/gains-backend/internal/gateway/domain"
	referraldomain "github.com/gainsai/gains-backend/internal/referral/domain"
	webhookdomain "github.com/gainsai/gains-backend/internal/webhook/domain"
	"github.com/gin-gonic/gin"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
	ErrBodyTooLarge   = errors.New("request_body_too_large")
)

// bindError classifies a body read or decode failure.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return ErrInvalidRequest
}

// AbortWithError writes the {"error": ...} envelope with the status mapped
// from err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, payload := errorResponse(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": payload})
}

func errorResponse(err error) (int, any) {
	var upstream *gatewaydomain.UpstreamError
	switch {
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, "Internal server error"
	case errors.As(err, &upstream):
		return upstream.Status(), upstream.Payload()
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, referraldomain.ErrUnauthorized),
		errors.Is(err, webhookdomain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, referraldomain.ErrInvalidCode):
		return http.StatusBadRequest, "Code must be at least 3 characters"
	case errors.Is(err, referraldomain.ErrInvalidCommissionRate):
		return http.StatusBadRequest, "Commission rate must be greater than 0 and at most 1"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, referraldomain.ErrNotFound):
		return http.StatusNotFound, "Code not found"
	case errors.Is(err, referraldomain.ErrAlreadyExists):
		return http.StatusConflict, "Code already exists"
	case errors.Is(err, db.ErrUnavailable):
		return http.StatusServiceUnavailable, "Database not available"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
