package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, s *Service) {
	g := r.Group("/v1/trees")
	g.POST("", s.handleCreate)
	g.GET("", s.handleList)
	g.GET("/:id", s.handleGet)
}

func (s *Service) handleCreate(c *gin.Context) {
	var req CreateTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BAD_REQUEST", "message": err.Error()}})
		return
	}

	tree, err := s.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, tree)
}

func (s *Service) handleGet(c *gin.Context) {
	tree, err := s.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tree)
}

func (s *Service) handleList(c *gin.Context) {
	trees, err := s.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trees": trees})
}
