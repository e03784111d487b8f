// Package hierarchy resolves category ancestry for indexed products.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/opalgrove/catdex/internal/domain/catalog"
)

// PathSeparator joins category names in the display path.
const PathSeparator = " > "

// maxWalkDepth bounds the ancestor walk so a cyclic parent graph cannot
// loop forever. Real trees are a handful of levels deep.
const maxWalkDepth = 32

// Hierarchy is the resolved category ancestry for one product.
// Level is -1 and the slices and path are empty when no categories are
// assigned. Path is the root-to-leaf chain of the deepest assigned
// category. ParentID is the direct parent of that deepest category.
type Hierarchy struct {
	CategoryIDs   []string
	CategoryNames []string
	Path          string
	Level         int
	ParentID      string
}

// Resolve walks parent links for every directly-assigned category, unions
// the full ancestor sets, and derives path/level/parent from the deepest
// chain. Malformed links (missing parent) truncate the walk silently; a
// cycle is cut by the depth guard. When several assigned categories tie
// for maximum depth, the one with the lexicographically smallest ID wins,
// so the result is deterministic regardless of input order.
func Resolve(assigned []catalog.CategoryRef, all map[string]catalog.Category) Hierarchy {
	if len(assigned) == 0 {
		return Hierarchy{Level: -1}
	}

	idSet := make(map[string]struct{})
	nameSet := make(map[string]struct{})
	var ids, names []string

	var deepest []catalog.Category
	var deepestID string

	for _, ref := range assigned {
		if ref.ID == "" {
			continue
		}
		chain := ancestorChain(ref, all)

		for _, c := range chain {
			if _, ok := idSet[c.ID]; !ok {
				idSet[c.ID] = struct{}{}
				ids = append(ids, c.ID)
			}
			if c.Name != "" {
				if _, ok := nameSet[c.Name]; !ok {
					nameSet[c.Name] = struct{}{}
					names = append(names, c.Name)
				}
			}
		}

		if len(chain) > len(deepest) || (len(chain) == len(deepest) && ref.ID < deepestID) {
			deepest = chain
			deepestID = ref.ID
		}
	}

	if len(deepest) == 0 {
		return Hierarchy{Level: -1}
	}

	segments := make([]string, len(deepest))
	for i, c := range deepest {
		segments[i] = c.Name
	}

	h := Hierarchy{
		CategoryIDs:   ids,
		CategoryNames: names,
		Path:          strings.Join(segments, PathSeparator),
		Level:         len(deepest) - 1,
	}
	if len(deepest) > 1 {
		h.ParentID = deepest[len(deepest)-2].ID
	}

	sort.Strings(h.CategoryIDs)
	sort.Strings(h.CategoryNames)
	return h
}

// ancestorChain returns the root-to-leaf chain for one assigned category.
// The walk stops at a missing parent or after maxWalkDepth steps.
func ancestorChain(ref catalog.CategoryRef, all map[string]catalog.Category) []catalog.Category {
	leaf, ok := all[ref.ID]
	if !ok {
		// Assigned category missing from the map: index it as a lone leaf
		// with whatever the product record carried.
		leaf = catalog.Category{ID: ref.ID, Name: ref.Name}
	}

	chain := []catalog.Category{leaf}
	current := leaf
	for i := 0; i < maxWalkDepth; i++ {
		if current.ParentID == "" {
			break
		}
		parent, ok := all[current.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent)
		current = parent
	}

	// Walked leaf-to-root; flip to root-to-leaf.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
