package hook

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/store"
)

// recordingHook writes a hook that appends each request to out.
func recordingHook(t *testing.T, dir, out string) *Manager {
	t.Helper()
	writeHook(t, dir, "recorder", `cat >> "`+out+`"
echo >> "`+out+`"
echo '{"success":true}'
`, "record")

	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return manager
}

func readRequests(t *testing.T, path string) []Request {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	var reqs []Request
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.Fatalf("bad request line %q: %v", line, err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func TestRunner_DispatchesBoundLabel(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "requests.jsonl")
	manager := recordingHook(t, dir, out)

	bindings := StaticBindings{
		{Label: 2, Hook: "recorder", Action: "record", Config: json.RawMessage(`{"key":"space"}`)},
	}
	runner := NewRunner(manager, NewExecutor(5*time.Second), bindings)

	ctx := context.Background()
	events := []app.Event{
		{ID: "a", Set: "default", Recognized: true, Label: 2, Name: "circle", Score: 42},
		{ID: "b", Recognized: true, Label: 7, Name: "unbound"},
		{ID: "c", Recognized: false, Label: 2},
	}
	for _, ev := range events {
		if err := runner.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish(%s) error = %v", ev.ID, err)
		}
	}
	runner.Wait()

	reqs := readRequests(t, out)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 hook run, got %d", len(reqs))
	}
	got := reqs[0]
	if got.Action != "record" || got.Label != 2 || got.Gesture != "circle" || got.Set != "default" || got.EventID != "a" {
		t.Errorf("unexpected request: %+v", got)
	}
	if string(got.Config) != `{"key":"space"}` {
		t.Errorf("expected binding config, got %s", got.Config)
	}

	stats := runner.Stats()
	if stats.Dispatched != 1 || stats.Succeeded != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRunner_UnknownHook(t *testing.T) {
	runner := NewRunner(NewManager(t.TempDir()), NewExecutor(time.Second),
		StaticBindings{{Label: 1, Hook: "missing", Action: "x"}})

	err := runner.Publish(context.Background(), app.Event{Recognized: true, Label: 1})
	if !errors.Is(err, ErrHookNotFound) {
		t.Fatalf("expected ErrHookNotFound, got %v", err)
	}
	if runner.Stats().Dispatched != 0 {
		t.Error("nothing should be dispatched")
	}
}

func TestRunner_UnsupportedAction(t *testing.T) {
	dir := t.TempDir()
	manager := recordingHook(t, dir, filepath.Join(dir, "out"))
	runner := NewRunner(manager, NewExecutor(time.Second),
		StaticBindings{{Label: 1, Hook: "recorder", Action: "launch"}})

	if err := runner.Publish(context.Background(), app.Event{Recognized: true, Label: 1}); err == nil {
		t.Fatal("expected error for unsupported action")
	}
}

func TestRunner_FailedHookCounted(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "failing", `echo '{"success":false,"error":"nope"}'
`)
	manager := NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(manager, NewExecutor(5*time.Second),
		StaticBindings{{Label: 1, Hook: "failing", Action: "any"}})
	if err := runner.Publish(context.Background(), app.Event{Recognized: true, Label: 1}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	runner.Wait()

	if stats := runner.Stats(); stats.Failed != 1 || stats.Succeeded != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRunner_ClosedIgnoresEvents(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "requests.jsonl")
	runner := NewRunner(recordingHook(t, dir, out), NewExecutor(time.Second),
		StaticBindings{{Label: 1, Hook: "recorder", Action: "record"}})

	if err := runner.Close(); err != nil {
		t.Fatal(err)
	}
	if err := runner.Publish(context.Background(), app.Event{Recognized: true, Label: 1}); err != nil {
		t.Fatal(err)
	}
	if reqs := readRequests(t, out); len(reqs) != 0 {
		t.Errorf("expected no hook runs after Close, got %d", len(reqs))
	}
}

func TestRunner_CloseWhilePublishing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "requests.jsonl")
	runner := NewRunner(recordingHook(t, dir, out), NewExecutor(5*time.Second),
		StaticBindings{{Label: 1, Hook: "recorder", Action: "record"}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := runner.Publish(context.Background(), app.Event{Recognized: true, Label: 1}); err != nil {
					t.Error(err)
				}
			}
		}()
	}

	if err := runner.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	// Every hook accepted before Close has finished by the time it returns.
	stats := runner.Stats()
	if stats.Succeeded+stats.Failed != stats.Dispatched {
		t.Errorf("hooks still running after Close: %+v", stats)
	}
}

func TestChain(t *testing.T) {
	first := StaticBindings{{Label: 1, Hook: "a", Action: "x"}}
	second := StaticBindings{{Label: 1, Hook: "b", Action: "x"}, {Label: 2, Hook: "b", Action: "y"}}
	chain := Chain{first, second}

	b, err := chain.Binding(1)
	if err != nil || b == nil || b.Hook != "a" {
		t.Errorf("label 1: got %+v, %v; want hook a", b, err)
	}
	b, err = chain.Binding(2)
	if err != nil || b == nil || b.Hook != "b" || b.Action != "y" {
		t.Errorf("label 2: got %+v, %v; want hook b action y", b, err)
	}
	b, err = chain.Binding(3)
	if err != nil || b != nil {
		t.Errorf("label 3: got %+v, %v; want nil", b, err)
	}
}

func TestStoreBindings(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	lib, err := gesture.NewLibrary(gesture.LibraryConfig{SamplesPerTemplate: 1},
		[]gesture.Template{
			{Label: 1, Name: "up", X: []gesture.Sequence{{1, 2}}, Y: []gesture.Sequence{{3, 4}}},
			{Label: 2, Name: "down", X: []gesture.Sequence{{2, 1}}, Y: []gesture.Sequence{{4, 3}}},
		},
		map[gesture.Label]gesture.Bounds{1: {X: 1, Y: 1}, 2: {X: 1, Y: 1}})
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	set, err := s.Sets().Save("default", "", lib)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	actions := s.Actions()
	for _, a := range []*store.Action{
		{SetID: set.ID, Label: 1, HookName: "keyboard", ActionName: "keystroke", Config: json.RawMessage(`{"key":"a"}`), Enabled: true},
		{SetID: set.ID, Label: 2, HookName: "keyboard", ActionName: "keystroke", Enabled: false},
	} {
		if err := actions.Create(a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	bindings := StoreBindings{Actions: actions, SetID: set.ID}

	b, err := bindings.Binding(1)
	if err != nil {
		t.Fatalf("Binding(1) error = %v", err)
	}
	if b == nil || b.Hook != "keyboard" || b.Action != "keystroke" || string(b.Config) != `{"key":"a"}` {
		t.Errorf("Binding(1) = %+v", b)
	}

	for _, label := range []gesture.Label{2, 3} {
		b, err := bindings.Binding(label)
		if err != nil || b != nil {
			t.Errorf("Binding(%d) = %+v, %v; want nil", label, b, err)
		}
	}
}
