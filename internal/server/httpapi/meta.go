package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/cloudkeeper/internal/buildinfo"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleBuild(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":         buildinfo.Version,
		"git_commit_hash": buildinfo.Commit,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"db": false})
		return
	}
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"db": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"db": true})
}
