// Package canon defines the canonical UI tree representation and the
// normalizer that turns arbitrary captured trees into it.
package canon

// Bounds is the optional on-screen rectangle of a node.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// recognizedProps is the closed set of property keys a canonical node may carry.
var recognizedProps = map[string]bool{
	"visible": true,
	"enabled": true,
	"focused": true,
	"value":   true,
	"secure":  true,
}

// transientKeys MUST NOT appear in canonical form.
var transientKeys = map[string]bool{
	"timestamp":   true,
	"id":          true,
	"instance_id": true,
	"hash":        true,
}

// aliasOrder lists the alias keys folded into name, first-present-wins order.
var aliasOrder = []string{"label", "title", "text", "description"}

// Node is a single canonical tree node.
type Node struct {
	Role     string         `json:"role"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Bounds   *Bounds        `json:"bounds,omitempty"`
	Children []*Node        `json:"children,omitempty"`
}

// Tree is the envelope around a single canonical root node. All other
// top-level fields of a raw capture are transient and stripped.
type Tree struct {
	Root *Node `json:"root"`
}

// Empty reports whether the tree has no root.
func (t *Tree) Empty() bool {
	return t == nil || t.Root == nil
}
