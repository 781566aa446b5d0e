//go:build property
// +build property

package canon_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/greywatch/driftwatch/pkg/canon"
)

// TestNormalizeIsIdempotent verifies invariant 1 from the drift pipeline's
// testable properties: normalizing an already-canonical tree is the
// identity.
func TestNormalizeIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize(normalize(t)) == normalize(t)", prop.ForAll(
		func(role, name, typ string, childCount int) bool {
			children := make([]any, 0, childCount%5)
			for i := 0; i < childCount%5; i++ {
				children = append(children, map[string]any{
					"role": role,
					"name": name,
					"type": typ,
				})
			}
			raw := map[string]any{
				"root": map[string]any{
					"role":     role,
					"name":     name,
					"type":     typ,
					"children": children,
				},
			}

			once := canon.Normalize(raw)
			twice := canon.Normalize(once.AsRawMap())

			onceJSON, err1 := json.Marshal(once)
			twiceJSON, err2 := json.Marshal(twice)
			if err1 != nil || err2 != nil {
				return false
			}
			return string(onceJSON) == string(twiceJSON)
		},
		gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

// TestNormalizeChildOrderingIsAscending verifies invariant 2: child
// ordering after normalization is ascending on (role, name, type).
func TestNormalizeChildOrderingIsAscending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("children are sorted ascending by (role, name, type)", prop.ForAll(
		func(roles, names []string) bool {
			n := len(roles)
			if len(names) < n {
				n = len(names)
			}
			children := make([]any, 0, n)
			for i := 0; i < n; i++ {
				children = append(children, map[string]any{"role": roles[i], "name": names[i]})
			}
			tree := canon.Normalize(map[string]any{
				"root": map[string]any{"role": "container", "children": children},
			})
			if tree.Root == nil {
				return true
			}
			kids := tree.Root.Children
			for i := 1; i < len(kids); i++ {
				a, b := kids[i-1], kids[i]
				if a.Role > b.Role {
					return false
				}
				if a.Role == b.Role && a.Name > b.Name {
					return false
				}
				if a.Role == b.Role && a.Name == b.Name && a.Type > b.Type {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
