package audit

import (
	"go.uber.org/fx"
)

var Module = fx.Module("audit.recorder",
	fx.Provide(NewRecorder),
)
