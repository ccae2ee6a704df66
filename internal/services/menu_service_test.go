package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/rbac"
)

func newMenuService(t *testing.T, db *gorm.DB) *MenuService {
	t.Helper()
	resolver, err := rbac.NewResolver(db, rbac.Config{})
	require.NoError(t, err)
	svc, err := NewMenuService(db, resolver, nil)
	require.NoError(t, err)
	return svc
}

func strRef(s string) *string { return &s }

func TestMenuServiceCreate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	dir, err := svc.Create(ctx, CreateMenuInput{Code: "system", Title: "System", IsDirectory: true})
	require.NoError(t, err)
	require.True(t, dir.IsVisible)

	leaf, err := svc.Create(ctx, CreateMenuInput{
		Code:     "system.users",
		Title:    "Users",
		Path:     strRef("/system/users"),
		ParentID: &dir.ID,
	})
	require.NoError(t, err)
	require.Equal(t, dir.ID, *leaf.ParentID)
}

func TestMenuServiceCreateUniqueness(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateMenuInput{Code: "users", Title: "Users", Path: strRef("/users")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateMenuInput{Code: "users", Title: "Other"})
	require.ErrorIs(t, err, ErrMenuCodeTaken)

	_, err = svc.Create(ctx, CreateMenuInput{Code: "other", Title: "Other", Path: strRef("/users")})
	require.ErrorIs(t, err, ErrMenuPathTaken)
}

func TestMenuServiceCreateRejectsLeafParent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	leaf, err := svc.Create(ctx, CreateMenuInput{Code: "users", Title: "Users"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateMenuInput{Code: "nested", Title: "Nested", ParentID: &leaf.ID})
	require.ErrorIs(t, err, ErrMenuParentNotDirectory)
}

func TestMenuServiceDeleteDirectoryWithChildren(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	dir, err := svc.Create(ctx, CreateMenuInput{Code: "system", Title: "System", IsDirectory: true})
	require.NoError(t, err)
	child, err := svc.Create(ctx, CreateMenuInput{Code: "system.users", Title: "Users", ParentID: &dir.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, dir.ID), ErrMenuHasChildren)

	require.NoError(t, svc.Delete(ctx, child.ID))
	require.NoError(t, svc.Delete(ctx, dir.ID))
}

func TestMenuServiceTreeOrdersBySort(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateMenuInput{Code: "b", Title: "B", Sort: 2})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateMenuInput{Code: "a", Title: "A", Sort: 1})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, "a", tree[0].Code)
	require.Equal(t, "b", tree[1].Code)
}

func TestMenuServiceVisibleTree(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	perm := &models.Permission{Name: "menu:users", Type: models.PermissionTypeMenu}
	require.NoError(t, db.Create(perm).Error)

	dir, err := svc.Create(ctx, CreateMenuInput{Code: "system", Title: "System", IsDirectory: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateMenuInput{
		Code: "system.users", Title: "Users", ParentID: &dir.ID, PermissionID: &perm.ID,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateMenuInput{Code: "public", Title: "Public"})
	require.NoError(t, err)

	hidden := false
	_, err = svc.Create(ctx, CreateMenuInput{Code: "secret", Title: "Secret", IsVisible: &hidden})
	require.NoError(t, err)

	// A user without the guarding permission sees only the public leaf; the empty
	// directory is pruned.
	user := &models.User{Username: "alice", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	tree, err := svc.VisibleTree(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, "public", tree[0].Code)

	// Granting the permission through a role reveals the directory and its child.
	role := &models.Role{Name: "viewer"}
	require.NoError(t, db.Create(role).Error)
	require.NoError(t, db.Model(role).Association("Permissions").Append(perm))
	require.NoError(t, db.Model(user).Association("Roles").Append(role))

	// A fresh resolver avoids waiting out the cache TTL.
	svc = newMenuService(t, db)
	tree, err = svc.VisibleTree(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, "system", tree[0].Code)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "system.users", tree[0].Children[0].Code)
}

func TestMenuServiceVisibleTreeSuperAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newMenuService(t, db)
	ctx := context.Background()

	perm := &models.Permission{Name: "menu:users", Type: models.PermissionTypeMenu}
	require.NoError(t, db.Create(perm).Error)
	_, err := svc.Create(ctx, CreateMenuInput{Code: "guarded", Title: "Guarded", PermissionID: &perm.ID})
	require.NoError(t, err)

	root := &models.User{Username: "root", Password: "x", IsActive: true}
	require.NoError(t, db.Create(root).Error)
	superRole := &models.Role{Name: models.SuperAdminRoleName}
	require.NoError(t, db.Create(superRole).Error)
	require.NoError(t, db.Model(root).Association("Roles").Append(superRole))

	tree, err := svc.VisibleTree(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, "guarded", tree[0].Code)
}
