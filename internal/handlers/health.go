package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/pkg/response"
)

// Health reports liveness together with process uptime.
func Health() gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
