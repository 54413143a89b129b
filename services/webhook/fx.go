package webhook

import (
	"grovevest-settlement/services/investment"

	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(NewService),
	fx.Provide(func(s *investment.Service) Settlement { return s }),
)

var Routes = fx.Module("webhook.routes",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)
