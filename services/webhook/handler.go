package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/task"
	"grovevest-settlement/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler is the inbound edge: verify, parse, enqueue, acknowledge. All
// state changes happen in the worker so the gateway gets a fast 200 and
// retries are driven by asynq, not by the gateway.
type Handler struct {
	secret   string
	enqueuer task.Enqueuer
}

type HandlerParams struct {
	fx.In
	Config   *config.Config
	Enqueuer task.Enqueuer
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		secret:   p.Config.Gateway.WebhookSecret,
		enqueuer: p.Enqueuer,
	}
}

func registerRoutes(r *gin.Engine, h *Handler) {
	r.POST("/webhooks/payment", h.handleEvent)
}

func (h *Handler) handleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": "unreadable body"}})
		return
	}

	if !Verify(h.secret, body, c.GetHeader("Grove-Signature")) {
		zap.L().Warn("webhook signature mismatch", zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid signature"}})
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.ID == "" || env.Type == "" {
		zap.L().Warn("unparsable webhook envelope", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": "unparsable event envelope"}})
		return
	}

	if _, err := h.enqueuer.Enqueue(
		asynq.NewTask(taskname.WebhookApply, body),
		asynq.Queue("critical"),
		asynq.MaxRetry(10),
	); err != nil {
		zap.L().Error("failed to enqueue webhook event",
			zap.String("event_id", env.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL", "message": "failed to accept event"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
