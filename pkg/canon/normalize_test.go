package canon

import "testing"

func TestNormalizeEmptyInput(t *testing.T) {
	tr := Normalize(nil)
	if !tr.Empty() {
		t.Fatal("expected empty tree for nil input")
	}
}

func TestNormalizeDropsTransientKeys(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role":        "Button",
			"name":        "ok",
			"timestamp":   12345,
			"id":          "xyz",
			"instance_id": "i-1",
			"hash":        "deadbeef",
		},
	}
	tr := Normalize(raw)
	if tr.Root.Role != "button" {
		t.Fatalf("expected lowercased role, got %q", tr.Root.Role)
	}
	if tr.Root.Name != "ok" {
		t.Fatalf("expected name ok, got %q", tr.Root.Name)
	}
	asRaw := tr.AsRawMap()
	rootRaw := asRaw["root"].(map[string]any)
	for _, k := range []string{"timestamp", "id", "instance_id", "hash"} {
		if _, present := rootRaw[k]; present {
			t.Fatalf("transient key %q leaked into canonical form", k)
		}
	}
}

func TestNormalizeFoldsAliases(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role":  "text",
			"label": "Hello",
		},
	}
	tr := Normalize(raw)
	if tr.Root.Name != "Hello" {
		t.Fatalf("expected alias folded into name, got %q", tr.Root.Name)
	}
}

func TestNormalizeNamePrecedenceOverAlias(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role":  "text",
			"name":  "Actual",
			"label": "Alias",
		},
	}
	tr := Normalize(raw)
	if tr.Root.Name != "Actual" {
		t.Fatalf("expected name to win over alias, got %q", tr.Root.Name)
	}
}

func TestNormalizeChildOrdering(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role": "container",
			"children": []any{
				map[string]any{"role": "button", "name": "z"},
				map[string]any{"role": "button", "name": "a"},
				map[string]any{"role": "text", "name": "m"},
			},
		},
	}
	tr := Normalize(raw)
	names := []string{}
	for _, c := range tr.Root.Children {
		names = append(names, c.Role+":"+c.Name)
	}
	want := []string{"button:a", "button:z", "text:m"}
	for i, w := range want {
		if names[i] != w {
			t.Fatalf("child order mismatch at %d: want %s got %s", i, w, names[i])
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := map[string]any{
		"root": map[string]any{
			"role":  "container",
			"title": "Outer",
			"children": []any{
				map[string]any{"role": "Button", "description": "Submit", "visible": true},
				map[string]any{"role": "button", "name": "Cancel"},
			},
		},
	}
	once := Normalize(raw)
	twice := Normalize(once.AsRawMap())

	if once.Root.Name != twice.Root.Name || once.Root.Role != twice.Root.Role {
		t.Fatal("normalize is not idempotent at the root")
	}
	if len(once.Root.Children) != len(twice.Root.Children) {
		t.Fatal("normalize is not idempotent on child count")
	}
	for i := range once.Root.Children {
		a, b := once.Root.Children[i], twice.Root.Children[i]
		if a.Role != b.Role || a.Name != b.Name {
			t.Fatalf("normalize is not idempotent at child %d", i)
		}
	}
}

func TestNormalizeAcceptsBareNodeWithoutRootEnvelope(t *testing.T) {
	raw := map[string]any{"role": "window", "name": "Main"}
	tr := Normalize(raw)
	if tr.Empty() {
		t.Fatal("expected a bare node payload to normalize directly")
	}
	if tr.Root.Role != "window" || tr.Root.Name != "Main" {
		t.Fatalf("unexpected root: %+v", tr.Root)
	}
}
