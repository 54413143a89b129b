package kyc

import (
	"go.uber.org/fx"
)

var Module = fx.Module("kyc.provider",
	fx.Provide(NewProvider),
)
