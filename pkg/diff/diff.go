// Package diff computes a recursive structural comparison between two
// canonical UI trees.
package diff

import (
	"fmt"

	"github.com/greywatch/driftwatch/pkg/canon"
)

// Change is a one-sided addition or removal.
type Change struct {
	Path string      `json:"path"`
	Node *canon.Node `json:"node"`
}

// PropertyChange records a single tracked-property delta on a compared node.
type PropertyChange struct {
	Path     string `json:"path"`
	Property string `json:"property"`
	Old      any    `json:"old"`
	New      any    `json:"new"`
}

// Result is the outcome of diffing two canonical trees.
type Result struct {
	Added          []Change          `json:"added"`
	Removed        []Change          `json:"removed"`
	Modified       []PropertyChange  `json:"modified"`
	UnchangedCount int               `json:"unchanged_count"`
	Similarity     float64           `json:"similarity"`
}

// trackedProps is the closed set of properties compared on nodes considered
// "similar enough to compare".
var trackedProps = []string{"role", "name", "type", "visible", "enabled", "value"}

// Diff compares a (before) against b (after), producing the structural
// delta and a similarity score in [0,1].
func Diff(a, b *canon.Tree) Result {
	var r Result
	walkPair(&r, "root", nodeOf(a), nodeOf(b))

	delta := len(r.Added) + len(r.Removed) + len(r.Modified)
	total := delta + r.UnchangedCount
	if total == 0 {
		r.Similarity = 1.0
		return r
	}
	r.Similarity = float64(total-delta) / float64(total)
	return r
}

// HasSignificantChanges reports whether similarity falls below threshold.
func HasSignificantChanges(r Result, threshold float64) bool {
	return r.Similarity < threshold
}

func nodeOf(t *canon.Tree) *canon.Node {
	if t == nil {
		return nil
	}
	return t.Root
}

func walkPair(r *Result, path string, a, b *canon.Node) {
	switch {
	case a == nil && b == nil:
		return
	case a == nil:
		r.Added = append(r.Added, Change{Path: path, Node: b})
		return
	case b == nil:
		r.Removed = append(r.Removed, Change{Path: path, Node: a})
		return
	}

	if !comparable(a, b) {
		r.Removed = append(r.Removed, Change{Path: path, Node: a})
		r.Added = append(r.Added, Change{Path: path, Node: b})
		return
	}

	changed := compareTracked(r, path, a, b)

	maxLen := len(a.Children)
	if len(b.Children) > maxLen {
		maxLen = len(b.Children)
	}
	for i := 0; i < maxLen; i++ {
		var ca, cb *canon.Node
		if i < len(a.Children) {
			ca = a.Children[i]
		}
		if i < len(b.Children) {
			cb = b.Children[i]
		}
		walkPair(r, fmt.Sprintf("%s/children[%d]", path, i), ca, cb)
	}

	if !changed {
		r.UnchangedCount++
	}
}

// comparable reports whether two nodes share enough identity to be worth
// structurally comparing rather than treated as an unrelated add/remove pair.
func comparable(a, b *canon.Node) bool {
	return (a.Role != "" && a.Role == b.Role) || (a.Type != "" && a.Type == b.Type)
}

func compareTracked(r *Result, path string, a, b *canon.Node) bool {
	changed := false
	record := func(prop string, oldV, newV any) {
		if oldV != newV {
			r.Modified = append(r.Modified, PropertyChange{Path: path, Property: prop, Old: oldV, New: newV})
			changed = true
		}
	}
	record("role", a.Role, b.Role)
	record("name", a.Name, b.Name)
	record("type", a.Type, b.Type)
	record("visible", propValue(a, "visible"), propValue(b, "visible"))
	record("enabled", propValue(a, "enabled"), propValue(b, "enabled"))
	record("value", propValue(a, "value"), propValue(b, "value"))
	return changed
}

func propValue(n *canon.Node, key string) any {
	if n.Props == nil {
		return nil
	}
	return n.Props[key]
}
