package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/database/testutil"
	"github.com/palisade-admin/palisade/internal/models"
)

func newDepartmentService(t *testing.T, db *gorm.DB) *DepartmentService {
	t.Helper()
	svc, err := NewDepartmentService(db, nil)
	require.NoError(t, err)
	return svc
}

func TestDepartmentServiceCreateMaterializesPath(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateDepartmentInput{Name: "HQ"})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("/%d/", root.ID), root.Path)

	child, err := svc.Create(ctx, CreateDepartmentInput{Name: "Engineering", ParentID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("/%d/%d/", root.ID, child.ID), child.Path)

	grandchild, err := svc.Create(ctx, CreateDepartmentInput{Name: "Platform", ParentID: &child.ID})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("/%d/%d/%d/", root.ID, child.ID, grandchild.ID), grandchild.Path)
}

func TestDepartmentServiceCreateRejectsMissingParent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)

	missing := uint(999)
	_, err := svc.Create(context.Background(), CreateDepartmentInput{Name: "Orphan", ParentID: &missing})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Department{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDepartmentServiceTree(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)
	ctx := context.Background()

	hq, err := svc.Create(ctx, CreateDepartmentInput{Name: "HQ"})
	require.NoError(t, err)
	eng, err := svc.Create(ctx, CreateDepartmentInput{Name: "Engineering", ParentID: &hq.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateDepartmentInput{Name: "Sales", ParentID: &hq.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateDepartmentInput{Name: "Platform", ParentID: &eng.ID})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, "HQ", tree[0].Name)
	require.Len(t, tree[0].Children, 2)

	var engNode *DepartmentNode
	for _, node := range tree[0].Children {
		if node.Name == "Engineering" {
			engNode = node
		}
	}
	require.NotNil(t, engNode)
	require.Len(t, engNode.Children, 1)
	require.Equal(t, "Platform", engNode.Children[0].Name)
}

func TestDepartmentServiceSubtree(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)
	ctx := context.Background()

	hq, err := svc.Create(ctx, CreateDepartmentInput{Name: "HQ"})
	require.NoError(t, err)
	eng, err := svc.Create(ctx, CreateDepartmentInput{Name: "Engineering", ParentID: &hq.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateDepartmentInput{Name: "Platform", ParentID: &eng.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateDepartmentInput{Name: "Sales", ParentID: &hq.ID})
	require.NoError(t, err)

	subtree, err := svc.Subtree(ctx, eng.ID)
	require.NoError(t, err)
	require.Len(t, subtree, 2)
	require.Equal(t, "Engineering", subtree[0].Name)
	require.Equal(t, "Platform", subtree[1].Name)
}

func TestDepartmentServiceDeleteCascadesSubtree(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)
	ctx := context.Background()

	hq, err := svc.Create(ctx, CreateDepartmentInput{Name: "HQ"})
	require.NoError(t, err)
	eng, err := svc.Create(ctx, CreateDepartmentInput{Name: "Engineering", ParentID: &hq.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateDepartmentInput{Name: "Platform", ParentID: &eng.ID})
	require.NoError(t, err)
	sales, err := svc.Create(ctx, CreateDepartmentInput{Name: "Sales", ParentID: &hq.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, eng.ID))

	// Engineering and Platform are gone; HQ and Sales survive.
	_, err = svc.Get(ctx, eng.ID)
	require.ErrorIs(t, err, ErrDepartmentNotFound)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, sales.ID, tree[0].Children[0].ID)
}

func TestDepartmentServiceRename(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newDepartmentService(t, db)
	ctx := context.Background()

	dept, err := svc.Create(ctx, CreateDepartmentInput{Name: "HQ"})
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, dept.ID, "Head Office")
	require.NoError(t, err)
	require.Equal(t, "Head Office", renamed.Name)
	require.Equal(t, dept.Path, renamed.Path)
}
