package hierarchy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type flatItem struct {
	ID       uint
	ParentID *uint
	Name     string
}

type treeNode struct {
	ID       uint        `json:"id"`
	Name     string      `json:"name"`
	Children []*treeNode `json:"children,omitempty"`
}

func assemble(items []flatItem) []*treeNode {
	return Assemble(items,
		func(i *flatItem) uint { return i.ID },
		func(i *flatItem) *uint { return i.ParentID },
		func(i *flatItem, children []*treeNode) *treeNode {
			return &treeNode{ID: i.ID, Name: i.Name, Children: children}
		})
}

func uintPtr(v uint) *uint { return &v }

func TestAssembleEmptyInput(t *testing.T) {
	require.Nil(t, assemble(nil))
}

func TestAssembleNestsChildrenUnderParents(t *testing.T) {
	tree := assemble([]flatItem{
		{ID: 1, Name: "root"},
		{ID: 2, ParentID: uintPtr(1), Name: "child"},
		{ID: 3, ParentID: uintPtr(2), Name: "grandchild"},
		{ID: 4, Name: "second root"},
	})

	require.Len(t, tree, 2)
	require.Equal(t, uint(1), tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, uint(3), tree[0].Children[0].Children[0].ID)
	require.Nil(t, tree[1].Children)
}

// Leaves carry a nil child slice so the serialised field is absent, not an empty list.
func TestAssembleLeavesOmitChildList(t *testing.T) {
	tree := assemble([]flatItem{
		{ID: 1, Name: "root"},
		{ID: 2, ParentID: uintPtr(1), Name: "leaf"},
	})

	payload, err := json.Marshal(tree)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1,"name":"root","children":[{"id":2,"name":"leaf"}]}]`, string(payload))
}

func TestAssemblePreservesInputOrderWithinSiblings(t *testing.T) {
	tree := assemble([]flatItem{
		{ID: 3, Name: "c"},
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b"},
	})

	require.Equal(t, []uint{3, 1, 2}, []uint{tree[0].ID, tree[1].ID, tree[2].ID})
}
