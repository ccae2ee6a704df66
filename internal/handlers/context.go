package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext extracts the incoming request's context, tolerating contexts built
// without a request.
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
