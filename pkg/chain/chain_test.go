package chain

import "testing"

func TestAppendAdvancesHead(t *testing.T) {
	c := New()
	if c.Head() != GenesisHash {
		t.Fatalf("expected genesis head, got %s", c.Head())
	}
	e1, err := c.Append(map[string]any{"a": 1}, "1000")
	if err != nil {
		t.Fatal(err)
	}
	if e1.PreviousHash != GenesisHash {
		t.Fatalf("expected first entry's previous_hash to be genesis, got %s", e1.PreviousHash)
	}
	if c.Head() != e1.EntryHash {
		t.Fatalf("expected head to advance to entry hash")
	}
	e2, err := c.Append(map[string]any{"a": 2}, "1001")
	if err != nil {
		t.Fatal(err)
	}
	if e2.PreviousHash != e1.EntryHash {
		t.Fatal("expected second entry to chain onto the first")
	}
	if c.Len() != 2 {
		t.Fatalf("expected length 2, got %d", c.Len())
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	c := New()
	e1, _ := c.Append(map[string]any{"v": "original"}, "1000")
	e2, _ := c.Append(map[string]any{"v": "two"}, "1001")
	e3, _ := c.Append(map[string]any{"v": "three"}, "1002")

	entries := []Entry{e1, e2, e3}
	ok, bad := Verify(entries)
	if !ok || bad != -1 {
		t.Fatalf("expected a clean chain to verify, got ok=%v bad=%d", ok, bad)
	}

	entries[1].Data = map[string]any{"v": "TAMPERED"}
	ok, bad = Verify(entries)
	if ok {
		t.Fatal("expected tamper to be detected")
	}
	if bad != 1 {
		t.Fatalf("expected first bad index 1, got %d", bad)
	}
}

func TestVerifyEmptyChainHolds(t *testing.T) {
	ok, bad := Verify(nil)
	if !ok || bad != -1 {
		t.Fatalf("expected empty chain to verify trivially, got ok=%v bad=%d", ok, bad)
	}
}
