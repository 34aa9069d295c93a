package provider

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/events"
	"github.com/jeremyholland-coder/stageflow/internal/provider/adapters"
	"github.com/jeremyholland-coder/stageflow/internal/provider/adapters/stripe"
	"github.com/jeremyholland-coder/stageflow/internal/provider/repository"
	"github.com/jeremyholland-coder/stageflow/internal/provider/service"
)

var Module = fx.Module("provider.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(db *gorm.DB, genID *snowflake.Node) *events.Outbox {
		return events.NewOutbox(db, genID)
	}),
	fx.Provide(func(cfg config.Config, clk clock.Clock) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.New(stripe.Config{
				Secret:    cfg.ProviderWebhookSecret,
				Tolerance: cfg.SignatureTolerance,
			}, clk),
		)
	}),
	fx.Provide(service.NewService),
)
