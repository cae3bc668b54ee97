package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// NoResponse is returned in place of an upstream reply that carried no text.
const NoResponse = "No response"

var ErrInvalidRequest = errors.New("invalid_gateway_request")

type ImageCompletionRequest struct {
	// Image is base64-encoded JPEG data.
	Image        string `json:"image"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt"`
}

// ChatRequest keeps each message as raw JSON so array content and extra
// fields reach the provider unchanged.
type ChatRequest struct {
	Messages []json.RawMessage `json:"messages"`
}

// CompletionResponse is the body relayed back to the client for both gateways.
type CompletionResponse struct {
	Content string `json:"content"`
}

type ImageCompleter interface {
	Complete(ctx context.Context, req ImageCompletionRequest) (string, error)
}

type ChatCompleter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// UpstreamError carries a non-2xx reply from a provider so the HTTP layer
// can relay the same status and body.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream returned status %d", e.Provider, e.StatusCode)
}

// Payload returns the upstream body as JSON when it parses, else as a string.
func (e *UpstreamError) Payload() any {
	if json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return string(e.Body)
}

// Status returns the status to relay, falling back to 502 for nonsense codes.
func (e *UpstreamError) Status() int {
	if e.StatusCode < 400 || e.StatusCode > 599 {
		return http.StatusBadGateway
	}
	return e.StatusCode
}
