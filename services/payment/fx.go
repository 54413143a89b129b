package payment

import (
	"go.uber.org/fx"
)

var Module = fx.Module("payment.orchestrator",
	fx.Provide(NewHTTPGateway),
	fx.Provide(NewOrchestrator),
	fx.Provide(NewReconciler),
)

var Routes = fx.Module("payment.routes",
	fx.Invoke(registerRoutes),
)
