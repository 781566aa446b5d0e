// Package signature derives the full/structural/content SHA-256 digest
// triple from a canonical UI tree.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/greywatch/driftwatch/pkg/canon"
	"github.com/greywatch/driftwatch/pkg/canonjson"
)

// Triple is {full, structural, content}, each a 64-char lowercase hex SHA-256.
type Triple struct {
	Full       string `json:"full"`
	Structural string `json:"structural"`
	Content    string `json:"content"`
}

// defensiveIgnore is enforced on top of whatever canon.Normalize already
// stripped as part of the additional ignore set.
var defensiveIgnore = map[string]bool{
	"timestamp":   true,
	"id":          true,
	"instance_id": true,
	"focused":     true,
}

// Generate computes the signature triple for a canonical tree.
func Generate(t *canon.Tree) (Triple, error) {
	full, err := fullHash(t)
	if err != nil {
		return Triple{}, err
	}
	structural, err := structuralHash(t)
	if err != nil {
		return Triple{}, err
	}
	content := contentHash(t)
	return Triple{Full: full, Structural: structural, Content: content}, nil
}

func fullHash(t *canon.Tree) (string, error) {
	scrubbed := scrubIgnored(rawOf(t))
	return canonjson.Hash(scrubbed)
}

func rawOf(t *canon.Tree) map[string]any {
	if t.Empty() {
		return map[string]any{}
	}
	return t.AsRawMap()
}

func scrubIgnored(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			if defensiveIgnore[k] {
				continue
			}
			out[k] = scrubIgnored(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = scrubIgnored(vv)
		}
		return out
	default:
		return v
	}
}

type structuralNode struct {
	Role     string           `json:"role"`
	Type     string           `json:"type"`
	Children []structuralNode `json:"children,omitempty"`
}

func structuralHash(t *canon.Tree) (string, error) {
	proj := projectStructural(t.Root)
	return canonjson.Hash(proj)
}

func projectStructural(n *canon.Node) *structuralNode {
	if n == nil {
		return nil
	}
	sn := &structuralNode{Role: n.Role, Type: n.Type}
	for _, c := range n.Children {
		if cs := projectStructural(c); cs != nil {
			sn.Children = append(sn.Children, *cs)
		}
	}
	return sn
}

func contentHash(t *canon.Tree) string {
	names := collectNames(t.Root, nil)
	sort.Strings(names)
	joined := strings.Join(names, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func collectNames(n *canon.Node, acc []string) []string {
	if n == nil {
		return acc
	}
	if n.Name != "" {
		acc = append(acc, n.Name)
	}
	for _, c := range n.Children {
		acc = collectNames(c, acc)
	}
	return acc
}
