package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidPayload = errors.New("invalid_webhook_payload")
)

type OutcomeKind string

const (
	Processed        OutcomeKind = "processed"
	AcknowledgedOnly OutcomeKind = "acknowledged_only"
)

type Reason string

const (
	ReasonUnsupportedEventType Reason = "unsupported_event_type"
	ReasonMissingReferralCode  Reason = "missing_referral_code"
	ReasonDuplicateDelivery    Reason = "duplicate_delivery"
)

// Outcome is the result of a delivery that was accepted. Reason is set only
// for AcknowledgedOnly.
type Outcome struct {
	Kind   OutcomeKind
	Reason Reason
	Code   string
}

func (o Outcome) Processed() bool {
	return o.Kind == Processed
}

// Label is the metrics label for the outcome.
func (o Outcome) Label() string {
	if o.Kind == Processed {
		return string(Processed)
	}
	return string(o.Reason)
}

// Acknowledgement is the body returned to the provider for accepted deliveries.
type Acknowledgement struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed"`
}

func (o Outcome) Acknowledgement() Acknowledgement {
	return Acknowledgement{Received: true, Processed: o.Processed()}
}

type Service interface {
	Ingest(ctx context.Context, payload []byte, headers http.Header) (Outcome, error)
}

// Deduplicator claims event ids so a redelivered event is applied once.
type Deduplicator interface {
	// Claim reports false when the id was already claimed.
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, eventID string) error
}
