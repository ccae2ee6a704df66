package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
)

func TestAuditServiceLog(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)
	ctx := context.Background()

	userID := uint(7)
	require.NoError(t, svc.Log(ctx, AuditEntry{
		UserID:   &userID,
		Action:   "role.create",
		Resource: "viewer",
		Result:   "success",
		Metadata: map[string]any{"role_id": 3},
	}))

	page, err := svc.List(ctx, store.PageRequest{Page: 1, Size: 10}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)

	entry := page.Items[0]
	require.Equal(t, "role.create", entry.Action)
	require.Equal(t, &userID, entry.UserID)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	require.EqualValues(t, 3, meta["role_id"])
}

func TestAuditServiceLogValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	require.Error(t, svc.Log(context.Background(), AuditEntry{Result: "success"}))
	require.Error(t, svc.Log(context.Background(), AuditEntry{Action: "x"}))
}

func TestAuditServiceListFiltersAndOrder(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)
	ctx := context.Background()

	for _, entry := range []AuditEntry{
		{Action: "auth.login", Result: "success"},
		{Action: "auth.login", Result: "denied"},
		{Action: "role.create", Result: "success"},
	} {
		require.NoError(t, svc.Log(ctx, entry))
	}

	page, err := svc.List(ctx, store.PageRequest{Page: 1, Size: 10}, query.Filters{"action": "auth.login"})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	denied, err := svc.Export(ctx, query.Filters{"result": "denied"})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	require.Equal(t, "auth.login", denied[0].Action)
}
