package investment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, s *Service) {
	g := r.Group("/v1/investments")
	g.POST("", s.handleCreate)
	g.GET("", s.handleList)
	g.GET("/:id", s.handleGet)
	g.POST("/:id/cancel", s.handleCancel)
	g.POST("/:id/mature", s.handleMature)
	g.POST("/:id/sell", s.handleSell)
}

func (s *Service) handleCreate(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": err.Error()}})
		return
	}

	result, err := s.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Service) handleGet(c *gin.Context) {
	inv, err := s.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (s *Service) handleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	investments, err := s.List(c.Request.Context(), ListRequest{
		UserID: c.Query("user_id"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investments": investments})
}

func (s *Service) handleCancel(c *gin.Context) {
	var body struct {
		ActorID string `json:"actor_id"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.ActorID == "" {
		body.ActorID = c.GetHeader("X-Actor-ID")
	}

	inv, err := s.Cancel(c.Request.Context(), c.Param("id"), body.ActorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (s *Service) handleMature(c *gin.Context) {
	inv, err := s.MarkMatured(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (s *Service) handleSell(c *gin.Context) {
	inv, err := s.MarkSold(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}
