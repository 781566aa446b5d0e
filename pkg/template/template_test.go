package template

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplateFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsEmptyScreenID(t *testing.T) {
	errs := ValidateWithErrors(&Template{ScreenID: ""})
	if len(errs) == 0 {
		t.Fatal("expected a diagnostic for empty screen_id")
	}
}

func TestValidateRejectsMalformedTransition(t *testing.T) {
	errs := ValidateWithErrors(&Template{ScreenID: "login", ValidTransitions: []string{"login=>home"}})
	if len(errs) == 0 {
		t.Fatal("expected a diagnostic for a transition missing \" -> \"")
	}
}

func TestValidateAllowsEmptyTransitionEntry(t *testing.T) {
	errs := ValidateWithErrors(&Template{ScreenID: "login", ValidTransitions: []string{""}})
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics, got %v", errs)
	}
}

func TestStoreReloadIndexesByScreenID(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "login.yaml", `
screen_id: login
required_nodes:
  - email_input
  - password_input
  - login_button
valid_transitions:
  - "login -> home"
`)
	writeTemplateFile(t, dir, "home.yaml", `
screen_id: home
`)

	s := NewStore(dir)
	diagnostics, err := s.Reload()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagnostics)
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 templates, got %d", s.Count())
	}
	tpl, ok := s.Get("login")
	if !ok {
		t.Fatal("expected to find template \"login\"")
	}
	if len(tpl.RequiredNodes) != 3 {
		t.Fatalf("expected 3 required nodes, got %d", len(tpl.RequiredNodes))
	}
}

func TestStoreReloadSkipsInvalidTemplateButKeepsOthers(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "good.yaml", `screen_id: good`)
	writeTemplateFile(t, dir, "bad.yaml", `screen_id: 42`)

	s := NewStore(dir)
	diagnostics, err := s.Reload()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(diagnostics) != 1 {
		t.Fatalf("expected exactly one file with diagnostics, got %v", diagnostics)
	}
	if s.Count() != 1 {
		t.Fatalf("expected the good template to still load, got count %d", s.Count())
	}
}

func TestStoreReloadIsAtomicSwap(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "a.yaml", `screen_id: a`)

	s := NewStore(dir)
	if _, err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	snapshot := s.List()

	writeTemplateFile(t, dir, "b.yaml", `screen_id: b`)
	if _, err := s.Reload(); err != nil {
		t.Fatal(err)
	}

	if len(snapshot) != 1 {
		t.Fatalf("expected the earlier snapshot to remain 1 element, got %d", len(snapshot))
	}
	if s.Count() != 2 {
		t.Fatalf("expected the store itself to now see 2 templates, got %d", s.Count())
	}
}
