// Package httpclient is the JSON-over-HTTP caller shared by the AI gateways.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gainsai/gains-backend/internal/gateway/domain"
	"github.com/gainsai/gains-backend/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const maxResponseBytes = 10 << 20

type Caller struct {
	provider string
	client   *http.Client
	tracer   trace.Tracer
	metrics  *observability.Metrics
}

func New(provider string, timeout time.Duration, tp trace.TracerProvider, metrics *observability.Metrics) *Caller {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Caller{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		tracer:   tp.Tracer("gains/gateway/" + provider),
		metrics:  metrics,
	}
}

// PostJSON sends in as JSON to url and decodes a 2xx reply into out.
// Non-2xx replies come back as *domain.UpstreamError.
func (c *Caller) PostJSON(ctx context.Context, url string, headers http.Header, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.provider+".request", trace.WithSpanKind(trace.SpanKindClient))
	outcome := "error"
	defer func() {
		c.metrics.GatewayRequests.WithLabelValues(c.provider, outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s read response: %w", c.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "upstream_error"
		return &domain.UpstreamError{Provider: c.provider, StatusCode: resp.StatusCode, Body: raw}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s decode response: %w", c.provider, err)
	}
	outcome = "ok"
	return nil
}
