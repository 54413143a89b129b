package investment

import (
	"go.uber.org/fx"
)

var Module = fx.Module("investment.service",
	fx.Provide(NewGuard),
	fx.Provide(NewService),
)

var Routes = fx.Module("investment.routes",
	fx.Invoke(registerRoutes),
)
