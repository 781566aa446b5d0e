package signature

import (
	"testing"

	"github.com/greywatch/driftwatch/pkg/canon"
)

func treeFrom(raw map[string]any) *canon.Tree {
	return canon.Normalize(raw)
}

func TestEquivalentTreesYieldEqualSignatures(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role": "container",
			"children": []any{
				map[string]any{"role": "button", "name": "ok"},
			},
		},
	}
	a, err := Generate(treeFrom(raw))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(treeFrom(raw))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected equal signatures for equivalent trees, got %+v vs %+v", a, b)
	}
}

func TestContentChangePreservesStructuralSignature(t *testing.T) {
	base := map[string]any{
		"root": map[string]any{
			"role": "container",
			"children": []any{
				map[string]any{"role": "text", "name": "$12.50"},
			},
		},
	}
	changed := map[string]any{
		"root": map[string]any{
			"role": "container",
			"children": []any{
				map[string]any{"role": "text", "name": "$8.00"},
			},
		},
	}
	a, err := Generate(treeFrom(base))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(treeFrom(changed))
	if err != nil {
		t.Fatal(err)
	}
	if a.Structural != b.Structural {
		t.Fatal("expected structural signature to be unaffected by name-only change")
	}
	if a.Content == b.Content {
		t.Fatal("expected content signature to differ")
	}
	if a.Full == b.Full {
		t.Fatal("expected full signature to differ")
	}
}

func TestStructuralChangeAltersStructuralSignature(t *testing.T) {
	withChild := map[string]any{
		"root": map[string]any{
			"role": "container",
			"children": []any{
				map[string]any{"role": "button", "name": "ok"},
			},
		},
	}
	withoutChild := map[string]any{
		"root": map[string]any{
			"role": "container",
		},
	}
	a, err := Generate(treeFrom(withChild))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(treeFrom(withoutChild))
	if err != nil {
		t.Fatal(err)
	}
	if a.Structural == b.Structural {
		t.Fatal("expected structural signature to differ when a child is removed")
	}
}

func TestGenerateOnEmptyTreeDoesNotError(t *testing.T) {
	_, err := Generate(&canon.Tree{})
	if err != nil {
		t.Fatalf("expected empty tree to hash cleanly, got error: %v", err)
	}
}
