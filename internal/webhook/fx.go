package webhook

import (
	"github.com/gainsai/gains-backend/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(service.NewDeduplicator),
	fx.Provide(service.New),
)
