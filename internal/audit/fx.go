package audit

import (
	"go.uber.org/fx"

	"github.com/jeremyholland-coder/stageflow/internal/audit/repository"
	"github.com/jeremyholland-coder/stageflow/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
