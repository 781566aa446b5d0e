package diff

import (
	"testing"

	"github.com/greywatch/driftwatch/pkg/canon"
)

func tree(raw map[string]any) *canon.Tree {
	return canon.Normalize(raw)
}

func TestDiffSelfIsIdentity(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role": "window",
			"children": []any{
				map[string]any{"role": "button", "name": "ok"},
				map[string]any{"role": "text", "name": "hello"},
			},
		},
	}
	a := tree(raw)
	b := tree(raw)
	r := Diff(a, b)
	if len(r.Added) != 0 || len(r.Removed) != 0 || len(r.Modified) != 0 {
		t.Fatalf("expected no changes diffing a tree against itself, got %+v", r)
	}
	if r.Similarity != 1.0 {
		t.Fatalf("expected similarity 1.0, got %f", r.Similarity)
	}
}

func TestDiffEmptyVsEmptyIsSimilarityOne(t *testing.T) {
	r := Diff(&canon.Tree{}, &canon.Tree{})
	if r.Similarity != 1.0 {
		t.Fatalf("expected similarity 1.0 for empty-vs-empty, got %f", r.Similarity)
	}
}

func TestDiffOneSideEmptyIsSimilarityZero(t *testing.T) {
	raw := map[string]any{"root": map[string]any{"role": "window"}}
	r := Diff(tree(raw), &canon.Tree{})
	if r.Similarity != 0.0 {
		t.Fatalf("expected similarity 0.0 when one side is empty, got %f", r.Similarity)
	}
	if len(r.Removed) != 1 {
		t.Fatalf("expected one removed entry, got %d", len(r.Removed))
	}
}

func TestDiffDetectsRemovedChild(t *testing.T) {
	before := tree(map[string]any{
		"root": map[string]any{
			"role": "window",
			"children": []any{
				map[string]any{"role": "button", "name": "send_button"},
				map[string]any{"role": "textbox", "name": "input_area"},
			},
		},
	})
	after := tree(map[string]any{
		"root": map[string]any{
			"role": "window",
			"children": []any{
				map[string]any{"role": "textbox", "name": "input_area"},
			},
		},
	})
	r := Diff(before, after)
	if r.Similarity >= 1.0 {
		t.Fatalf("expected similarity < 1.0, got %f", r.Similarity)
	}
	foundRemoved := false
	for _, c := range r.Removed {
		if c.Node.Name == "send_button" {
			foundRemoved = true
		}
	}
	if !foundRemoved {
		t.Fatalf("expected send_button among removed nodes, got %+v", r.Removed)
	}
}

func TestDiffDetectsContentOnlyChange(t *testing.T) {
	before := tree(map[string]any{
		"root": map[string]any{
			"role": "window",
			"children": []any{
				map[string]any{"role": "text", "name": "$12.50"},
			},
		},
	})
	after := tree(map[string]any{
		"root": map[string]any{
			"role": "window",
			"children": []any{
				map[string]any{"role": "text", "name": "$8.00"},
			},
		},
	})
	r := Diff(before, after)
	if len(r.Added) != 0 || len(r.Removed) != 0 {
		t.Fatalf("expected a pure modification, got added=%v removed=%v", r.Added, r.Removed)
	}
	if len(r.Modified) == 0 {
		t.Fatal("expected a modified entry for the name change")
	}
}

func TestHasSignificantChanges(t *testing.T) {
	r := Result{Similarity: 0.85}
	if !HasSignificantChanges(r, 0.9) {
		t.Fatal("expected 0.85 to be significant relative to threshold 0.9")
	}
	if HasSignificantChanges(r, 0.8) {
		t.Fatal("expected 0.85 to not be significant relative to threshold 0.8")
	}
}
