package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, rec *Reconciler) {
	r.GET("/v1/reconciliation", func(c *gin.Context) {
		items, err := rec.Run(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		if items == nil {
			items = []ReconcileItem{}
		}
		c.JSON(http.StatusOK, gin.H{"transactions": items})
	})
}
