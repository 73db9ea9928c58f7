package activator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/loftpm/loft/internal/events"
	"github.com/loftpm/loft/internal/manifest"
)

// Activator errors.
var (
	// ErrNotRegistered is returned when a name has no registered spec.
	ErrNotRegistered = errors.New("extension not registered")

	// ErrAlreadyRegistered is returned when a name is registered twice.
	ErrAlreadyRegistered = errors.New("extension already registered")

	// ErrNotFailed is returned when Retry is called on an extension that
	// has not failed.
	ErrNotFailed = errors.New("extension has not failed")
)

// SetupFunc invokes one extension's setup entry point with its config
// payload. The activator is the sole caller.
type SetupFunc func(spec *manifest.ExtensionSpec) error

// Status is a snapshot of one extension's activation state.
type Status struct {
	Name  string
	State State
	Err   error
}

// Activator tracks registered extensions and activates each one's setup
// entry point at most once. Eager extensions activate during StartEager in
// registration order; deferred extensions activate on the first matching
// host event. A setup failure marks the extension failed and is surfaced
// to the caller; the host keeps running without it.
type Activator struct {
	setup SetupFunc

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

type entry struct {
	spec    manifest.ExtensionSpec
	trigger manifest.Trigger
	state   State
	err     error
	done    chan struct{} // non-nil while loading
}

// New creates an Activator that calls setup for each activation.
func New(setup SetupFunc) *Activator {
	return &Activator{
		setup:   setup,
		entries: make(map[string]*entry),
	}
}

// Register records an extension and its activation predicate without
// loading it. Specs should be registered in resolver order; StartEager
// preserves that order.
func (a *Activator) Register(spec manifest.ExtensionSpec) error {
	trigger, err := spec.Trigger()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.entries[spec.Name]; exists {
		return fmt.Errorf("extension %q: %w", spec.Name, ErrAlreadyRegistered)
	}
	a.entries[spec.Name] = &entry{
		spec:    spec,
		trigger: trigger,
		state:   StateNotLoaded,
	}
	a.order = append(a.order, spec.Name)
	return nil
}

// State returns the activation state of a registered extension.
func (a *Activator) State(name string) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[name]
	if !ok {
		return StateNotLoaded, fmt.Errorf("extension %q: %w", name, ErrNotRegistered)
	}
	return e.state, nil
}

// Statuses returns a snapshot of every registered extension in
// registration order.
func (a *Activator) Statuses() []Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Status, 0, len(a.order))
	for _, name := range a.order {
		e := a.entries[name]
		out = append(out, Status{Name: name, State: e.state, Err: e.err})
	}
	return out
}

// StartEager activates every eager extension in registration order.
// Failures are collected; one extension failing does not stop the rest.
func (a *Activator) StartEager() error {
	a.mu.Lock()
	names := make([]string, 0, len(a.order))
	for _, name := range a.order {
		if a.entries[name].trigger.Eager() {
			names = append(names, name)
		}
	}
	a.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := a.Activate(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Activate runs the extension's setup entry point, at most once. Under
// concurrent triggers exactly one caller runs setup; the others wait for
// it and share the outcome. Dependencies activate before the extension
// itself, and a failed dependency fails the dependent.
func (a *Activator) Activate(name string) error {
	a.mu.Lock()
	e, ok := a.entries[name]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("extension %q: %w", name, ErrNotRegistered)
	}

	switch e.state {
	case StateLoaded:
		a.mu.Unlock()
		return nil
	case StateFailed:
		err := e.err
		a.mu.Unlock()
		return err
	case StateLoading:
		// Another activation is in flight; wait for its outcome.
		done := e.done
		a.mu.Unlock()
		<-done
		a.mu.Lock()
		err := e.err
		a.mu.Unlock()
		return err
	}

	// This caller owns the transition.
	e.state = StateLoading
	e.done = make(chan struct{})
	deps := e.spec.Depends
	a.mu.Unlock()

	err := a.activateDeps(name, deps)
	if err == nil {
		err = a.runSetup(&e.spec)
	}

	a.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.err = err
	} else {
		e.state = StateLoaded
		e.err = nil
	}
	close(e.done)
	e.done = nil
	a.mu.Unlock()

	return err
}

// Retry re-runs activation for a failed extension. This is the only
// non-monotonic state transition.
func (a *Activator) Retry(name string) error {
	a.mu.Lock()
	e, ok := a.entries[name]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("extension %q: %w", name, ErrNotRegistered)
	}
	if e.state != StateFailed {
		state := e.state
		a.mu.Unlock()
		return fmt.Errorf("extension %q is %s: %w", name, state, ErrNotFailed)
	}
	e.state = StateNotLoaded
	e.err = nil
	a.mu.Unlock()

	return a.Activate(name)
}

// HandleEvent activates every not-yet-loaded extension whose trigger
// matches the event. Repeat events are no-ops for already-loaded
// extensions.
func (a *Activator) HandleEvent(ev events.Event) {
	a.mu.Lock()
	var matched []string
	for _, name := range a.order {
		e := a.entries[name]
		if e.state == StateNotLoaded && matches(e.trigger, ev) {
			matched = append(matched, name)
		}
	}
	a.mu.Unlock()

	for _, name := range matched {
		// Errors are captured in the entry and visible via Statuses.
		a.Activate(name)
	}
}

// Bind subscribes the activator to a bus; the returned function
// unsubscribes it.
func (a *Activator) Bind(bus *events.Bus) func() {
	return bus.Subscribe(a.HandleEvent)
}

func (a *Activator) activateDeps(name string, deps []string) error {
	for _, dep := range deps {
		if err := a.Activate(dep); err != nil {
			return fmt.Errorf("dependency %s of %s: %w", dep, name, err)
		}
	}
	return nil
}

// runSetup calls the setup entry point with panic recovery so a broken
// extension cannot crash the host.
func (a *Activator) runSetup(spec *manifest.ExtensionSpec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setup for %s panicked: %v", spec.Name, r)
		}
	}()

	if err := a.setup(spec); err != nil {
		return fmt.Errorf("setup for %s: %w", spec.Name, err)
	}
	return nil
}

func matches(t manifest.Trigger, ev events.Event) bool {
	switch t.Kind {
	case manifest.TriggerCommand:
		return ev.Kind == events.KindCommand && ev.Value == t.Value
	case manifest.TriggerFileType:
		return ev.Kind == events.KindFileType && ev.Value == t.Value
	case manifest.TriggerKey:
		return ev.Kind == events.KindKey && ev.Value == t.Value
	default:
		return false
	}
}
