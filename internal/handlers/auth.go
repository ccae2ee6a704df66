package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/palisade-admin/palisade/internal/auth"
	"github.com/palisade-admin/palisade/internal/middleware"
	"github.com/palisade-admin/palisade/internal/rbac"
	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/errors"
	"github.com/palisade-admin/palisade/pkg/response"
)

// AuthHandler manages authentication flows (login/me).
type AuthHandler struct {
	users    *services.UserService
	jwt      *iauth.JWTService
	resolver *rbac.Resolver
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService, resolver *rbac.Resolver) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, resolver: resolver}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		// Normalise auth failures to a single response shape
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   int(h.jwt.AccessTokenTTL().Seconds()),
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"is_active": user.IsActive,
		},
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	perms, err := h.resolver.PermissionsOf(requestContext(c), userID, true)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.Name)
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        user,
		"permissions": names,
	})
}
