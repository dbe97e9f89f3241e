package hook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "keyboard", "", "keystroke", "shortcut")

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	hooks := manager.List()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	h := hooks[0]
	if h.Manifest.Name != "keyboard" {
		t.Errorf("expected hook name 'keyboard', got %q", h.Manifest.Name)
	}
	if len(h.Manifest.Actions) != 2 {
		t.Errorf("expected 2 actions, got %d", len(h.Manifest.Actions))
	}
	if h.Path != filepath.Join(dir, "keyboard") {
		t.Errorf("unexpected path %q", h.Path)
	}
	if h.Executable != filepath.Join(dir, "keyboard", "run.sh") {
		t.Errorf("unexpected executable %q", h.Executable)
	}
}

func TestManager_List_Sorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeHook(t, dir, name, "")
	}

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	hooks := manager.List()
	if len(hooks) != 3 {
		t.Fatalf("expected 3 hooks, got %d", len(hooks))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if hooks[i].Manifest.Name != want {
			t.Errorf("hooks[%d] = %q, want %q", i, hooks[i].Manifest.Name, want)
		}
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "good", "")

	for name, manifest := range map[string]string{
		"broken":    "{not json",
		"anonymous": `{"executable":"run.sh"}`,
	} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name, ManifestFile), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "no-manifest"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray-file"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if hooks := manager.List(); len(hooks) != 1 || hooks[0].Manifest.Name != "good" {
		t.Fatalf("expected only the valid hook, got %d hooks", len(hooks))
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on missing dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Fatal("expected no hooks")
	}
}

func TestManager_Get(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "my-hook", "")

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	h, err := manager.Get("my-hook")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if h.Manifest.Name != "my-hook" {
		t.Errorf("expected 'my-hook', got %q", h.Manifest.Name)
	}

	if _, err := manager.Get("missing"); !errors.Is(err, ErrHookNotFound) {
		t.Errorf("expected ErrHookNotFound, got %v", err)
	}
	if manager.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", manager.Dir(), dir)
	}
}
