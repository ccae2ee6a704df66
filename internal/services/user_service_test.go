package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/pkg/crypto"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

func newUserService(t *testing.T, db *gorm.DB) *UserService {
	t.Helper()
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewUserService(db, audit)
	require.NoError(t, err)
	return svc
}

func TestUserServiceCreate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.IsActive)
	require.NotEqual(t, "s3cret", user.Password)
	require.True(t, crypto.VerifyPassword("s3cret", user.Password))
}

func TestUserServiceCreateRejectsDuplicateUsername(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserServiceCreateWithRoles(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	role := &models.Role{Name: "viewer"}
	require.NoError(t, db.Create(role).Error)

	user, err := svc.Create(ctx, CreateUserInput{
		Username: "alice",
		Password: "pw",
		RoleIDs:  []uint{role.ID, role.ID},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Roles, 1)
	require.Equal(t, "viewer", got.Roles[0].Name)
}

func TestUserServiceCreateRejectsMissingRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)

	_, err := svc.Create(context.Background(), CreateUserInput{
		Username: "alice",
		Password: "pw",
		RoleIDs:  []uint{999},
	})
	require.Error(t, err)

	// The transaction rolled back the user row too.
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUserServiceAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserServiceAuthenticateRejectsInactive(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	inactive := false
	_, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw", IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "pw")
	require.ErrorIs(t, err, ErrUserInactive)
}

func TestUserServiceSetPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "old"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, user.ID, "new"))

	_, err = svc.Authenticate(ctx, "alice", "old")
	require.Error(t, err)
	_, err = svc.Authenticate(ctx, "alice", "new")
	require.NoError(t, err)
}

func TestUserServiceAssignRolesReplaces(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	viewer := &models.Role{Name: "viewer"}
	editor := &models.Role{Name: "editor"}
	require.NoError(t, db.Create(viewer).Error)
	require.NoError(t, db.Create(editor).Error)

	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw", RoleIDs: []uint{viewer.ID}})
	require.NoError(t, err)

	require.NoError(t, svc.AssignRoles(ctx, user.ID, []uint{editor.ID}))

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Roles, 1)
	require.Equal(t, "editor", got.Roles[0].Name)

	// An empty set clears all memberships.
	require.NoError(t, svc.AssignRoles(ctx, user.ID, nil))
	got, err = svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, got.Roles)
}

func TestUserServiceDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))

	_, err = svc.Get(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceDeleteRejectsSuperAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc := newUserService(t, db)
	ctx := context.Background()

	admin, err := svc.GetByUsername(ctx, "admin")
	require.NoError(t, err)

	err = svc.Delete(ctx, admin.ID)
	require.Error(t, err)

	still, err := svc.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, admin.ID, still.ID)
}

func TestUserServiceListFilters(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newUserService(t, db)
	ctx := context.Background()

	inactive := false
	_, err := svc.Create(ctx, CreateUserInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserInput{Username: "bob", Password: "pw", IsActive: &inactive})
	require.NoError(t, err)

	page, err := svc.List(ctx, storePageRequest(1, 10), query.Filters{"is_active": true})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "alice", page.Items[0].Username)

	page, err = svc.List(ctx, storePageRequest(1, 10), query.Filters{"username__startswith": "b"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "bob", page.Items[0].Username)
}
