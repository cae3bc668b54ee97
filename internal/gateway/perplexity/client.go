package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/gateway/domain"
	"github.com/gainsai/gains-backend/internal/gateway/httpclient"
	"github.com/gainsai/gains-backend/internal/observability"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	provider = "perplexity"

	sourcesHeader = "\n\n---SOURCES---\n"
	sourcesFooter = "---END_SOURCES---"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Tracer  trace.TracerProvider
	Metrics *observability.Metrics
}

type Client struct {
	cfg    config.PerplexityConfig
	log    *zap.Logger
	caller *httpclient.Caller
}

func New(p Params) domain.ChatCompleter {
	return &Client{
		cfg:    p.Cfg.Perplexity,
		log:    p.Log.Named("gateway.perplexity"),
		caller: httpclient.New(provider, p.Cfg.Perplexity.HTTPTimeout, p.Tracer, p.Metrics),
	}
}

type completionRequest struct {
	Model    string           `json:"model"`
	Messages []json.RawMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Chat forwards the conversation and returns the reply, with any citations
// appended as a delimited sources block.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var resp completionResponse
	body := completionRequest{Model: c.cfg.Model, Messages: req.Messages}
	if err := c.caller.PostJSON(ctx, c.cfg.BaseURL+"/chat/completions", headers, body, &resp); err != nil {
		c.log.Warn("perplexity request failed", zap.Error(err))
		return "", err
	}

	reply := domain.NoResponse
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		reply = resp.Choices[0].Message.Content
	}
	return withSources(reply, resp.Citations), nil
}

func withSources(reply string, citations []string) string {
	if len(citations) == 0 {
		return reply
	}
	var b strings.Builder
	b.WriteString(reply)
	b.WriteString(sourcesHeader)
	for _, citation := range citations {
		b.WriteString(citation)
		b.WriteString("\n")
	}
	b.WriteString(sourcesFooter)
	return b.String()
}
