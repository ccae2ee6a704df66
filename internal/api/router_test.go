package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/palisade-admin/palisade/internal/auth"
	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/rbac"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "palisade-test",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	resolver, err := rbac.NewResolver(db, rbac.Config{})
	require.NoError(t, err)

	r, err := NewRouter(db, jwt, resolver)
	require.NoError(t, err)
	return r, db, jwt
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterHealthIsPublic(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterLoginFlow(t *testing.T) {
	r, _, _ := newTestRouter(t)

	// Wrong password is rejected.
	w := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "admin-password"})
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.NotEmpty(t, payload.Data.AccessToken)

	// The token works against a protected endpoint; the seeded admin is a superadmin.
	w = doJSON(r, http.MethodGet, "/api/users", payload.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/auth/me", payload.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRejectsUnauthenticated(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterRouteAuthorization(t *testing.T) {
	r, db, jwt := newTestRouter(t)

	// A user whose only permission covers GET /api/users.
	var perm models.Permission
	require.NoError(t, db.Where("name = ?", "user:list").First(&perm).Error)
	role := &models.Role{Name: "viewer"}
	require.NoError(t, db.Create(role).Error)
	require.NoError(t, db.Model(role).Association("Permissions").Append(&perm))

	user := &models.User{Username: "alice", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Model(user).Association("Roles").Append(role))

	token, err := jwt.GenerateAccessToken(user.ID, user.Username)
	require.NoError(t, err)

	w := doJSON(r, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/roles", token, gin.H{"name": "intruder"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Self-service endpoints need no route permission.
	w = doJSON(r, http.MethodGet, "/api/menus/visible", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/api/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
