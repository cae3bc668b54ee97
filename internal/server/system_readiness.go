package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gainsai/gains-backend/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessTimeout = 2 * time.Second

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool             `json:"ready"`
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/ready", s.GetSystemReadiness)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		observability.Gatherer(s.registry),
		promhttp.HandlerOpts{},
	)))
}

// GetSystemReadiness reports the ledger store and Redis. Dependencies that
// are not configured are optional; configured ones must answer.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	issues := make([]ReadinessIssue, 0, 3)
	isReady := true

	// Ledger store
	if !s.db.Available() {
		issues = append(issues, ReadinessIssue{
			ID:       "database",
			Status:   ReadinessStateOptional,
			Evidence: map[string]string{"note": "DATABASE_URL not set, referral endpoints return 503"},
		})
	} else if err := s.db.Ping(ctx); err != nil {
		isReady = false
		issues = append(issues, ReadinessIssue{
			ID:       "database",
			Status:   ReadinessStateNotReady,
			Evidence: map[string]string{"error": err.Error()},
		})
	} else {
		issues = append(issues, ReadinessIssue{
			ID:     "database",
			Status: ReadinessStateReady,
		})

		// Schema gate
		if s.schemaGate == nil {
			isReady = false
			issues = append(issues, ReadinessIssue{
				ID:       "schema_gate",
				Status:   ReadinessStateNotReady,
				Evidence: map[string]string{"error": "schema gate not configured"},
			})
		} else if err := s.schemaGate.MustBeActive(ctx); err != nil {
			isReady = false
			issues = append(issues, ReadinessIssue{
				ID:       "schema_gate",
				Status:   ReadinessStateNotReady,
				Evidence: map[string]string{"error": err.Error()},
			})
		} else {
			issues = append(issues, ReadinessIssue{
				ID:     "schema_gate",
				Status: ReadinessStateReady,
			})
		}
	}

	// Webhook dedup store
	if s.redis == nil {
		issues = append(issues, ReadinessIssue{
			ID:       "redis",
			Status:   ReadinessStateOptional,
			Evidence: map[string]string{"note": "REDIS_ADDR not set, webhook dedup disabled"},
		})
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		isReady = false
		issues = append(issues, ReadinessIssue{
			ID:       "redis",
			Status:   ReadinessStateNotReady,
			Evidence: map[string]string{"error": err.Error()},
		})
	} else {
		issues = append(issues, ReadinessIssue{
			ID:     "redis",
			Status: ReadinessStateReady,
		})
	}

	state := ReadinessStateReady
	status := http.StatusOK
	if !isReady {
		state = ReadinessStateNotReady
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ReadinessResponse{
		Ready:       isReady,
		SystemState: state,
		Issues:      issues,
	})
}
