package webhook

import (
	"net/http"

	"go.uber.org/fx"

	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/observability/tracing"
	"github.com/jeremyholland-coder/stageflow/internal/ssrf"
	"github.com/jeremyholland-coder/stageflow/internal/webhook/repository"
	"github.com/jeremyholland-coder/stageflow/internal/webhook/service"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() ssrf.Guard {
		return ssrf.NewGuard(nil)
	}),
	fx.Provide(fx.Annotate(
		func(cfg config.Config) *http.Client {
			return tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Delivery.Timeout})
		},
		fx.ResultTags(`name:"webhook_client"`),
	)),
	fx.Provide(service.NewService),
)
