package fraud

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, s *Service) {
	r.GET("/v1/fraud/alerts", s.handleListAlerts)
	r.POST("/v1/fraud/auth-attempts", s.handleRecordAuthAttempt)
}

type recordAuthAttemptRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Succeeded *bool  `json:"succeeded" binding:"required"`
}

func (s *Service) handleRecordAuthAttempt(c *gin.Context) {
	var req recordAuthAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": err.Error()}})
		return
	}

	attempt, err := s.RecordAuthAttempt(c.Request.Context(), req.UserID, *req.Succeeded)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"attempt": attempt})
}

func (s *Service) handleListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	alerts, err := s.ListAlerts(c.Request.Context(), ListAlertsRequest{
		UserID:   c.Query("user_id"),
		RuleType: c.Query("rule_type"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
