package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/db"
	"grovevest-settlement/pkg/logger"
	"grovevest-settlement/pkg/redis"
	"grovevest-settlement/pkg/sequence"
	"grovevest-settlement/pkg/task"
	"grovevest-settlement/services/audit"
	"grovevest-settlement/services/bootstrap"
	"grovevest-settlement/services/catalog"
	"grovevest-settlement/services/fraud"
	"grovevest-settlement/services/investment"
	"grovevest-settlement/services/kyc"
	"grovevest-settlement/services/payment"
	"grovevest-settlement/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		fx.Provide(provideSnowflakeNode),

		audit.Module,
		kyc.Module,
		catalog.Module,
		payment.Module,
		investment.Module,
		webhook.Module,
		fraud.Module,
		bootstrap.Module,

		task.Server,
		task.Scheduler,
		webhook.Tasks,
		fraud.Tasks,
		payment.Tasks,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
