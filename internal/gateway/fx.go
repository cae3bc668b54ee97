package gateway

import (
	"github.com/gainsai/gains-backend/internal/gateway/anthropic"
	"github.com/gainsai/gains-backend/internal/gateway/perplexity"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(anthropic.New),
	fx.Provide(perplexity.New),
)
