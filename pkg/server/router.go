package server

import (
	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/health"
	"grovevest-settlement/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var ProvideRouter = fx.Module("http.router", fx.Provide(NewRouter))

type RouterParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	return r
}
