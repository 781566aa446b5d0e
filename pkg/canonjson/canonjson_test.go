package canonjson

import "testing"

func TestMarshalSortsKeys(t *testing.T) {
	in := map[string]any{"c": 3, "a": 1, "b": 2}
	out, err := MarshalString(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"a":1,"b":2,"c":3}`
	if out != want {
		t.Fatalf("want %s, got %s", want, out)
	}
}

func TestMarshalIsDeterministicAcrossMapInsertionOrder(t *testing.T) {
	a, err := MarshalString(map[string]any{"z": 1, "a": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalString(map[string]any{"a": 2, "z": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected identical canonical form, got %s vs %s", a, b)
	}
}

func TestHashIsStableForEquivalentInput(t *testing.T) {
	h1, err := Hash(map[string]any{"x": 1, "y": "v"})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(map[string]any{"y": "v", "x": 1})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("expected stable hash regardless of map key order")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h1))
	}
}
