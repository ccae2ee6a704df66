package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/rbac"
	"github.com/palisade-admin/palisade/pkg/errors"
	"github.com/palisade-admin/palisade/pkg/metrics"
	"github.com/palisade-admin/palisade/pkg/response"
)

// RequireRoute authorizes the request against the registered route pattern and HTTP verb.
// Superadmins always pass; everyone else needs a matching api permission.
func RequireRoute(resolver *rbac.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, err := resolver.AuthorizeRoute(c.Request.Context(), userID, path, c.Request.Method)
		if err != nil {
			metrics.AuthorizationChecks.WithLabelValues("route", "error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": errors.ErrInternalServer.Code, "message": "authorization check failed"}})
			return
		}
		if !allowed {
			metrics.AuthorizationChecks.WithLabelValues("route", "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.AuthorizationChecks.WithLabelValues("route", "allowed").Inc()
		c.Next()
	}
}

// RequirePermission authorizes the request against a named permission.
func RequirePermission(resolver *rbac.Resolver, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := resolver.AuthorizeName(c.Request.Context(), userID, name)
		if err != nil {
			metrics.AuthorizationChecks.WithLabelValues("name", "error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": errors.ErrInternalServer.Code, "message": "authorization check failed"}})
			return
		}
		if !allowed {
			metrics.AuthorizationChecks.WithLabelValues("name", "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.AuthorizationChecks.WithLabelValues("name", "allowed").Inc()
		c.Next()
	}
}
