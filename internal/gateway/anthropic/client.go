package anthropic

import (
	"context"
	"net/http"

	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/gateway/domain"
	"github.com/gainsai/gains-backend/internal/gateway/httpclient"
	"github.com/gainsai/gains-backend/internal/observability"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	provider       = "anthropic"
	imageMediaType = "image/jpeg"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Tracer  trace.TracerProvider
	Metrics *observability.Metrics
}

type Client struct {
	cfg    config.AnthropicConfig
	log    *zap.Logger
	caller *httpclient.Caller
}

func New(p Params) domain.ImageCompleter {
	return &Client{
		cfg:    p.Cfg.Anthropic,
		log:    p.Log.Named("gateway.anthropic"),
		caller: httpclient.New(provider, p.Cfg.Anthropic.HTTPTimeout, p.Tracer, p.Metrics),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []contentPart `json:"content"`
}

// Complete sends one image plus prompt to the Messages API and returns the
// first text block of the reply.
func (c *Client) Complete(ctx context.Context, req domain.ImageCompletionRequest) (string, error) {
	body := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    req.SystemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: imageMediaType,
						Data:      req.Image,
					},
				},
				{Type: "text", Text: req.Prompt},
			},
		}},
	}

	headers := http.Header{}
	headers.Set("x-api-key", c.cfg.APIKey)
	headers.Set("anthropic-version", c.cfg.Version)

	var resp messagesResponse
	if err := c.caller.PostJSON(ctx, c.cfg.BaseURL+"/v1/messages", headers, body, &resp); err != nil {
		c.log.Warn("claude request failed", zap.Error(err))
		return "", err
	}

	for _, part := range resp.Content {
		if part.Type == "text" && part.Text != "" {
			return part.Text, nil
		}
	}
	return domain.NoResponse, nil
}
