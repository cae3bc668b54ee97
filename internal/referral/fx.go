package referral

import (
	"github.com/gainsai/gains-backend/internal/referral/repository"
	"github.com/gainsai/gains-backend/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
