package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
)

func newPermissionService(t *testing.T, db *gorm.DB) *PermissionService {
	t.Helper()
	svc, err := NewPermissionService(db, nil)
	require.NoError(t, err)
	return svc
}

func TestPermissionServiceCreate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	perm, err := svc.Create(ctx, CreatePermissionInput{
		Name:   "user:list",
		Path:   "/api/users",
		Method: "get",
	})
	require.NoError(t, err)
	require.Equal(t, models.PermissionTypeAPI, perm.Type)
	require.Equal(t, "GET", perm.Method)
}

func TestPermissionServiceCreateValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePermissionInput{Name: ""})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreatePermissionInput{Name: "x", Type: "bogus"})
	require.Error(t, err)

	// api permissions need a route.
	_, err = svc.Create(ctx, CreatePermissionInput{Name: "x", Type: models.PermissionTypeAPI})
	require.Error(t, err)

	// menu permissions do not.
	_, err = svc.Create(ctx, CreatePermissionInput{Name: "menu:users", Type: models.PermissionTypeMenu})
	require.NoError(t, err)
}

func TestPermissionServiceNameUniqueness(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/other", Method: "GET"})
	require.ErrorIs(t, err, ErrPermissionNameTaken)
}

func TestPermissionServiceRouteUniqueness(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreatePermissionInput{Name: "user:read", Path: "/api/users", Method: "GET"})
	require.ErrorIs(t, err, ErrPermissionRouteTaken)

	// Same path, different method is a different route.
	_, err = svc.Create(ctx, CreatePermissionInput{Name: "user:create", Path: "/api/users", Method: "POST"})
	require.NoError(t, err)
}

func TestPermissionServiceSoftDeleteFreesNameAndRoute(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	perm, err := svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, perm.ID))

	_, err = svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)
}

func TestPermissionServiceUpdateRoute(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	perm, err := svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, CreatePermissionInput{Name: "dept:list", Path: "/api/departments", Method: "GET"})
	require.NoError(t, err)

	// Moving onto an occupied route fails.
	path := "/api/departments"
	_, err = svc.Update(ctx, perm.ID, UpdatePermissionInput{Path: &path})
	require.ErrorIs(t, err, ErrPermissionRouteTaken)

	// Moving the occupant elsewhere frees it.
	freed := "/api/departments/tree"
	_, err = svc.Update(ctx, other.ID, UpdatePermissionInput{Path: &freed})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, perm.ID, UpdatePermissionInput{Path: &path})
	require.NoError(t, err)
	require.Equal(t, "/api/departments", updated.Path)
}

func TestPermissionServiceListByType(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newPermissionService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePermissionInput{Name: "user:list", Path: "/api/users", Method: "GET"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreatePermissionInput{Name: "menu:system", Type: models.PermissionTypeMenu})
	require.NoError(t, err)

	page, err := svc.List(ctx, storePageRequest(1, 10), query.Filters{"type": "menu"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "menu:system", page.Items[0].Name)
}
