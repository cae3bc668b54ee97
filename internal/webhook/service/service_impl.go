package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/observability"
	referraldomain "github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/gainsai/gains-backend/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const releaseTimeout = 2 * time.Second

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Referral referraldomain.Service
	Dedup    domain.Deduplicator
	Metrics  *observability.Metrics
}

type Service struct {
	log        *zap.Logger
	secret     string
	dedupTTL   time.Duration
	referral   referraldomain.Service
	dedup      domain.Deduplicator
	metrics    *observability.Metrics
	extractors []domain.CodeExtractor
}

func New(p Params) domain.Service {
	metrics := p.Metrics
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	dedup := p.Dedup
	if dedup == nil {
		dedup = NewDeduplicator(nil)
	}
	return &Service{
		log:        p.Log.Named("webhook.service"),
		secret:     p.Cfg.Webhook.Secret,
		dedupTTL:   p.Cfg.Webhook.DedupTTL,
		referral:   p.Referral,
		dedup:      dedup,
		metrics:    metrics,
		extractors: domain.CodeExtractors,
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte, headers http.Header) (domain.Outcome, error) {
	outcome, err := s.ingest(ctx, payload, headers)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		s.metrics.WebhookEvents.WithLabelValues("unauthorized").Inc()
	case err != nil:
		s.metrics.WebhookEvents.WithLabelValues("failed").Inc()
	default:
		s.metrics.WebhookEvents.WithLabelValues(outcome.Label()).Inc()
	}
	return outcome, err
}

func (s *Service) ingest(ctx context.Context, payload []byte, headers http.Header) (domain.Outcome, error) {
	if !s.authorized(headers) {
		s.log.Warn("webhook auth failed")
		return domain.Outcome{}, domain.ErrUnauthorized
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	event := envelope.Event

	eventType := referraldomain.EventType(event.Type)
	if !eventType.IsPurchase() {
		s.log.Info("webhook event skipped",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID))
		return acknowledged(domain.ReasonUnsupportedEventType), nil
	}

	code, found := domain.ExtractReferralCode(event, s.extractors)
	if found == nil {
		s.log.Info("purchase without referral code",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID))
		return acknowledged(domain.ReasonMissingReferralCode), nil
	}

	price, ok := event.PriceValue()
	if !ok {
		s.log.Warn("unparsable purchase price recorded as zero",
			zap.String("event_id", event.ID),
			zap.ByteString("price", event.Price))
	}

	if event.ID != "" {
		claimed, err := s.dedup.Claim(ctx, event.ID, s.dedupTTL)
		if err != nil {
			// Fail open to avoid dropping purchases on redis error
			s.log.Error("failed to claim webhook event", zap.String("event_id", event.ID), zap.Error(err))
		} else if !claimed {
			s.log.Info("duplicate webhook delivery", zap.String("event_id", event.ID))
			return acknowledged(domain.ReasonDuplicateDelivery), nil
		}
	}

	record, err := s.referral.ApplyPurchase(ctx, referraldomain.Purchase{
		Code:      code,
		UserID:    event.AppUserID,
		ProductID: event.ProductID,
		Price:     price,
		EventType: eventType,
		EventID:   event.ID,
		RawEvent:  maskPayload(payload),
	})
	if err != nil {
		s.release(event.ID)
		s.log.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("code", code),
			zap.Error(err))
		return domain.Outcome{}, err
	}

	s.log.Info("referral purchase tracked",
		zap.String("event_id", event.ID),
		zap.String("code", record.Code),
		zap.String("source", found.Source+"."+found.Key),
		zap.String("product_id", event.ProductID),
		zap.String("price", price.String()))
	return domain.Outcome{Kind: domain.Processed, Code: record.Code}, nil
}

func (s *Service) authorized(headers http.Header) bool {
	if s.secret == "" {
		return true
	}
	got := strings.TrimSpace(headers.Get("Authorization"))
	want := "Bearer " + s.secret
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// release frees a claim so the provider's redelivery is applied. It runs on
// a fresh context since the request context may already be done.
func (s *Service) release(eventID string) {
	if eventID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.dedup.Release(ctx, eventID); err != nil {
		s.log.Error("failed to release webhook event claim", zap.String("event_id", eventID), zap.Error(err))
	}
}

func acknowledged(reason domain.Reason) domain.Outcome {
	return domain.Outcome{Kind: domain.AcknowledgedOnly, Reason: reason}
}
