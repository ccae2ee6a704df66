package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
)

func newTestResolver(t *testing.T, db *gorm.DB, ttl time.Duration) *Resolver {
	t.Helper()
	r, err := NewResolver(db, Config{CacheSize: 16, CacheTTL: ttl})
	require.NoError(t, err)
	return r
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "x", IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createRole(t *testing.T, db *gorm.DB, name string, perms ...*models.Permission) *models.Role {
	t.Helper()
	r := &models.Role{Name: name}
	require.NoError(t, db.Create(r).Error)
	for _, p := range perms {
		require.NoError(t, db.Model(r).Association("Permissions").Append(p))
	}
	return r
}

func createPermission(t *testing.T, db *gorm.DB, name, path, method string) *models.Permission {
	t.Helper()
	p := &models.Permission{Name: name, Type: models.PermissionTypeAPI, Path: path, Method: method}
	require.NoError(t, db.Create(p).Error)
	return p
}

func grantRole(t *testing.T, db *gorm.DB, u *models.User, r *models.Role) {
	t.Helper()
	require.NoError(t, db.Model(u).Association("Roles").Append(r))
}

func TestRolesOf(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	user := createUser(t, db, "alice")
	viewer := createRole(t, db, "viewer")
	editor := createRole(t, db, "editor")
	grantRole(t, db, user, viewer)
	grantRole(t, db, user, editor)

	roles, err := resolver.RolesOf(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	other := createUser(t, db, "bob")
	roles, err = resolver.RolesOf(ctx, other.ID, true)
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestPermissionsOfDeduplicatesAcrossRoles(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	shared := createPermission(t, db, "user:list", "/api/users", "GET")
	user := createUser(t, db, "alice")
	grantRole(t, db, user, createRole(t, db, "viewer", shared))
	grantRole(t, db, user, createRole(t, db, "auditor", shared))

	perms, err := resolver.PermissionsOf(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, "user:list", perms[0].Name)
}

func TestPermissionsOfIgnoresDeletedRoles(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	perm := createPermission(t, db, "user:delete", "/api/users/:id", "DELETE")
	role := createRole(t, db, "admin-lite", perm)
	user := createUser(t, db, "alice")
	grantRole(t, db, user, role)

	perms, err := resolver.PermissionsOf(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, perms, 1)

	// Soft deleting the role severs everything it granted even though the
	// membership row still exists.
	require.NoError(t, db.Delete(role).Error)

	perms, err = resolver.PermissionsOf(ctx, user.ID, false)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestAuthorizeRoute(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	perm := createPermission(t, db, "user:list", "/api/users", "GET")
	user := createUser(t, db, "alice")
	grantRole(t, db, user, createRole(t, db, "viewer", perm))

	ok, err := resolver.AuthorizeRoute(ctx, user.ID, "/api/users", "GET")
	require.NoError(t, err)
	require.True(t, ok)

	// Method and path must match exactly.
	ok, err = resolver.AuthorizeRoute(ctx, user.ID, "/api/users", "POST")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.AuthorizeRoute(ctx, user.ID, "/api/users/:id", "GET")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeRouteIgnoresNonAPIPermissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	menu := &models.Permission{Name: "menu:users", Type: models.PermissionTypeMenu, Path: "/api/users", Method: "GET"}
	require.NoError(t, db.Create(menu).Error)

	user := createUser(t, db, "alice")
	grantRole(t, db, user, createRole(t, db, "viewer", menu))

	ok, err := resolver.AuthorizeRoute(ctx, user.ID, "/api/users", "GET")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSuperAdminBypassesAllChecks(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	user := createUser(t, db, "root")
	grantRole(t, db, user, createRole(t, db, models.SuperAdminRoleName))

	super, err := resolver.IsSuperAdmin(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, super)

	ok, err := resolver.AuthorizeRoute(ctx, user.ID, "/api/anything", "DELETE")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.AuthorizeName(ctx, user.ID, "never:granted")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeName(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, time.Minute)
	ctx := context.Background()

	perm := createPermission(t, db, "report:export", "/api/reports/export", "POST")
	user := createUser(t, db, "alice")
	grantRole(t, db, user, createRole(t, db, "analyst", perm))

	ok, err := resolver.AuthorizeName(ctx, user.ID, "report:export")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.AuthorizeName(ctx, user.ID, "report:delete")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheServesStaleUntilTTLExpires(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := newTestResolver(t, db, 50*time.Millisecond)
	ctx := context.Background()

	user := createUser(t, db, "alice")

	// Warm the cache while the user has no roles.
	roles, err := resolver.RolesOf(ctx, user.ID, true)
	require.NoError(t, err)
	require.Empty(t, roles)

	grantRole(t, db, user, createRole(t, db, "viewer"))

	// The grant is invisible while the cached entry is still valid.
	roles, err = resolver.RolesOf(ctx, user.ID, true)
	require.NoError(t, err)
	require.Empty(t, roles)

	// Bypassing the cache sees it immediately.
	roles, err = resolver.RolesOf(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, roles, 1)

	// After the TTL elapses the cached answer is refreshed.
	time.Sleep(80 * time.Millisecond)
	roles, err = resolver.RolesOf(ctx, user.ID, true)
	require.NoError(t, err)
	require.Len(t, roles, 1)
}
