package observability

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/observability/logger"
	"github.com/jeremyholland-coder/stageflow/internal/observability/tracing"
)

// Module wires logging and tracing for the process.
var Module = fx.Options(
	logger.Module,
	fx.Module("tracing",
		fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
			_, err := tracing.NewProvider(lc, cfg, log)
			return err
		}),
	),
)
