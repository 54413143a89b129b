package bootstrap

import (
	"grovevest-settlement/pkg/config"
	"grovevest-settlement/services/audit"
	"grovevest-settlement/services/catalog"
	"grovevest-settlement/services/fraud"
	"grovevest-settlement/services/investment"
	"grovevest-settlement/services/kyc"
	"grovevest-settlement/services/payment"
	"grovevest-settlement/services/webhook"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("bootstrap",
	fx.Invoke(Register),
)

type Params struct {
	fx.In
	Config       *config.Config
	DB           *gorm.DB
	Orchestrator *payment.Orchestrator
	Investment   *investment.Service
}

// Register wires the late-bound orchestrator/settlement link and, outside
// production, keeps the schema in step with the models. Production schema is
// managed by migrations.
func Register(p Params) error {
	p.Orchestrator.SetInvestmentService(p.Investment)

	if p.Config.AppEnv == "production" {
		return nil
	}

	if err := p.DB.AutoMigrate(
		&catalog.Tree{},
		&kyc.Profile{},
		&investment.Investment{},
		&investment.Transaction{},
		&webhook.Event{},
		&fraud.Alert{},
		&fraud.AuthAttempt{},
		&audit.Entry{},
	); err != nil {
		zap.L().Error("failed to auto-migrate schema", zap.Error(err))
		return err
	}

	return nil
}
