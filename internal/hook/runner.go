package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/store"
)

// Binding routes a recognized label to a hook action.
type Binding struct {
	Label  gesture.Label   `yaml:"label" json:"label"`
	Hook   string          `yaml:"hook" json:"hook"`
	Action string          `yaml:"action" json:"action"`
	Config json.RawMessage `yaml:"-" json:"config,omitempty"`
}

// BindingSource looks up the binding for a label. It returns nil, nil when
// the label is unbound.
type BindingSource interface {
	Binding(label gesture.Label) (*Binding, error)
}

// StaticBindings is a fixed set of bindings, typically from the config file.
type StaticBindings []Binding

// Binding implements BindingSource. The first binding for a label wins.
func (s StaticBindings) Binding(label gesture.Label) (*Binding, error) {
	for i := range s {
		if s[i].Label == label {
			b := s[i]
			return &b, nil
		}
	}
	return nil, nil
}

// StoreBindings reads bindings of one gesture set from the database.
type StoreBindings struct {
	Actions *store.ActionRepository
	SetID   string
}

// Binding implements BindingSource. Disabled actions count as unbound.
func (s StoreBindings) Binding(label gesture.Label) (*Binding, error) {
	a, err := s.Actions.GetByLabel(s.SetID, int(label))
	if err != nil || a == nil || !a.Enabled {
		return nil, err
	}
	return &Binding{
		Label:  gesture.Label(a.Label),
		Hook:   a.HookName,
		Action: a.ActionName,
		Config: a.Config,
	}, nil
}

// Chain consults each source in order and returns the first binding found.
type Chain []BindingSource

// Binding implements BindingSource.
func (c Chain) Binding(label gesture.Label) (*Binding, error) {
	for _, src := range c {
		b, err := src.Binding(label)
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}
	return nil, nil
}

// RunnerStats counts hook dispatches.
type RunnerStats struct {
	Dispatched uint64 `json:"dispatched"`
	Succeeded  uint64 `json:"succeeded"`
	Failed     uint64 `json:"failed"`
}

// Runner is a pipeline sink that executes the hook bound to each recognized
// label. Hooks run in their own goroutines so a slow hook never delays the
// classifier.
type Runner struct {
	manager  *Manager
	executor *Executor
	bindings BindingSource

	mu         sync.Mutex // guards closed and wg.Add against Close
	closed     bool
	wg         sync.WaitGroup
	dispatched atomic.Uint64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
}

// NewRunner creates a Runner.
func NewRunner(manager *Manager, executor *Executor, bindings BindingSource) *Runner {
	return &Runner{
		manager:  manager,
		executor: executor,
		bindings: bindings,
	}
}

// Publish implements app.Sink. Only binding and lookup errors are returned;
// execution failures are logged and counted.
func (r *Runner) Publish(ctx context.Context, ev app.Event) error {
	if !ev.Recognized || r.isClosed() {
		return nil
	}

	b, err := r.bindings.Binding(ev.Label)
	if err != nil {
		return fmt.Errorf("lookup binding for label %d: %w", ev.Label, err)
	}
	if b == nil {
		return nil
	}

	h, err := r.manager.Get(b.Hook)
	if err != nil {
		return fmt.Errorf("hook %q for label %d: %w", b.Hook, ev.Label, err)
	}
	if !h.Manifest.SupportsAction(b.Action) {
		return fmt.Errorf("hook %q does not support action %q", b.Hook, b.Action)
	}

	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	req := &Request{
		Action:  b.Action,
		Label:   int(ev.Label),
		Gesture: ev.Name,
		Set:     ev.Set,
		Score:   ev.Score,
		EventID: ev.ID,
		Config:  config,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.dispatched.Add(1)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.run(context.WithoutCancel(ctx), h, req)
	}()
	return nil
}

func (r *Runner) run(ctx context.Context, h *Hook, req *Request) {
	resp, err := r.executor.Execute(ctx, h, req)
	if err != nil {
		r.failed.Add(1)
		log.Printf("Hook %s action %s failed: %v", h.Manifest.Name, req.Action, err)
		return
	}
	if !resp.Success {
		r.failed.Add(1)
		log.Printf("Hook %s action %s reported error: %s", h.Manifest.Name, req.Action, resp.Error)
		return
	}
	r.succeeded.Add(1)
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Dispatched: r.dispatched.Load(),
		Succeeded:  r.succeeded.Load(),
		Failed:     r.failed.Load(),
	}
}

// Wait blocks until every dispatched hook has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close stops accepting events and waits for running hooks. It is safe to
// call while events are still being published.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}
