// Package hierarchy assembles nested tree views from flat self-referencing collections.
// Entities are loaded once; an identity-indexed adjacency map is built fresh per call, so no
// in-memory parent/child pointer cycles ever exist.
package hierarchy

// Assemble groups the items by parent identity in one pass, then recursively materialises
// typed nodes starting from the roots (items with a nil parent). The node callback receives
// each item together with its already-built children; leaves receive nil so serialised
// output can omit the child list entirely. Items referencing a parent absent from the input
// are omitted, which lets callers pre-filter the flat collection and get a consistent tree.
// Runs in O(n) grouping plus O(n) emission with no further store round-trips.
func Assemble[T any, N any](items []T, id func(*T) uint, parentID func(*T) *uint, node func(*T, []*N) *N) []*N {
	if len(items) == 0 {
		return nil
	}

	children := make(map[uint][]*T, len(items))
	var roots []*T
	for i := range items {
		item := &items[i]
		if pid := parentID(item); pid != nil {
			children[*pid] = append(children[*pid], item)
		} else {
			roots = append(roots, item)
		}
	}

	var build func(group []*T) []*N
	build = func(group []*T) []*N {
		if len(group) == 0 {
			return nil
		}
		nodes := make([]*N, 0, len(group))
		for _, item := range group {
			nodes = append(nodes, node(item, build(children[id(item)])))
		}
		return nodes
	}

	return build(roots)
}
