package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"

	"github.com/loftpm/loft/internal/lockfile"
	"github.com/loftpm/loft/internal/manifest"
	"github.com/loftpm/loft/internal/platform"
	"github.com/loftpm/loft/internal/store"
)

// Action describes what the fetcher did for one extension.
type Action int

const (
	// ActionUnchanged means the store already held the locked ref.
	ActionUnchanged Action = iota
	// ActionInstalled means the extension was fetched for the first time.
	ActionInstalled
	// ActionUpdated means an installed extension moved to a new ref.
	ActionUpdated
	// ActionFailed means fetching or checkout failed after the retry.
	ActionFailed
)

// String returns a string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionInstalled:
		return "installed"
	case ActionUpdated:
		return "updated"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports the outcome of fetching one extension.
type Result struct {
	Name   string
	Ref    string
	Action Action
	Err    error
}

// Failed reports whether any result in the slice failed, counting both
// fetch failures and build-step failures on an otherwise healthy fetch.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Failed reports whether this result represents a failure: either the
// fetch itself failed or the extension installed but its build step did
// not complete.
func (r Result) Failed() bool {
	return r.Action == ActionFailed || r.Err != nil
}

// Fetcher ensures the store holds each manifest extension at its locked
// ref, fetching only what is absent or out of date. Independent extensions
// fetch concurrently on a bounded worker pool; build steps run afterwards
// in resolver order.
type Fetcher struct {
	store *store.Store
	lock  *lockfile.Lockfile

	jobs   int
	runner Runner

	mu sync.Mutex // guards lockfile writes from workers
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithJobs bounds the number of concurrent fetch workers.
func WithJobs(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.jobs = n
		}
	}
}

// WithRunner replaces the command runner used for git operations.
func WithRunner(r Runner) Option {
	return func(f *Fetcher) {
		f.runner = r
	}
}

// New creates a Fetcher over the given store and lockfile.
func New(st *store.Store, lock *lockfile.Lockfile, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:  st,
		lock:   lock,
		jobs:   4,
		runner: execRunner,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure brings the store in line with the lockfile for every spec, in the
// order produced by the resolver. A failure on one extension does not abort
// the others; the returned results report per-extension outcomes in input
// order. The lockfile gains entries for newly fetched extensions but is not
// saved here.
func (f *Fetcher) Ensure(ctx context.Context, specs []manifest.ExtensionSpec) []Result {
	return f.run(ctx, specs, false)
}

// Update re-resolves refs for the given specs, ignoring current lockfile
// entries: specs with a Version constraint move to the best matching tag,
// pinned refs are re-fetched, everything else moves to the remote HEAD.
func (f *Fetcher) Update(ctx context.Context, specs []manifest.ExtensionSpec) []Result {
	return f.run(ctx, specs, true)
}

func (f *Fetcher) run(ctx context.Context, specs []manifest.ExtensionSpec, update bool) []Result {
	results := make([]Result, len(specs))

	sem := make(chan struct{}, f.jobs)
	var wg sync.WaitGroup
	for i := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = f.ensureOne(ctx, &specs[i], update)
		}()
	}
	wg.Wait()

	// Build steps honor resolver order: a dependency's build completes
	// before its dependents build. Unchanged extensions still rebuild if
	// an earlier run left their build pending or failed.
	for i := range specs {
		if results[i].Action == ActionFailed || specs[i].Build == "" {
			continue
		}
		if results[i].Action == ActionUnchanged && !f.buildOutstanding(specs[i].Name) {
			continue
		}
		if err := f.build(ctx, &specs[i]); err != nil {
			results[i].Err = errors.Join(results[i].Err, err)
		}
	}

	return results
}

// ensureOne fetches a single extension, retrying once on transient failure.
func (f *Fetcher) ensureOne(ctx context.Context, spec *manifest.ExtensionSpec, update bool) Result {
	lockedRef, locked := f.lock.Ref(spec.Name)

	// Fast path: installed at the locked ref already. No network.
	if !update && locked && f.store.Installed(spec.Name) {
		if meta, err := f.store.Meta(spec.Name); err == nil && meta.Ref == lockedRef {
			return Result{Name: spec.Name, Ref: lockedRef, Action: ActionUnchanged}
		}
	}

	wantRef := ""
	if !update && locked {
		wantRef = lockedRef
	}
	wasInstalled := f.store.Installed(spec.Name)

	var ref string
	op := func() error {
		var err error
		ref, err = f.fetchInto(ctx, spec, wantRef)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return Result{Name: spec.Name, Action: ActionFailed, Err: err}
	}

	action := ActionInstalled
	if locked || (update && wasInstalled) {
		if ref == lockedRef {
			action = ActionUnchanged
		} else {
			action = ActionUpdated
		}
	}

	f.mu.Lock()
	f.lock.Set(spec.Name, ref)
	f.mu.Unlock()

	return Result{Name: spec.Name, Ref: ref, Action: action}
}

// fetchInto stages the extension source tree and promotes it into the
// store. It returns the resolved ref recorded in the store metadata.
func (f *Fetcher) fetchInto(ctx context.Context, spec *manifest.ExtensionSpec, wantRef string) (string, error) {
	staged, err := f.store.StageDir()
	if err != nil {
		return "", backoff.Permanent(err)
	}
	defer f.store.DiscardStage(staged)

	var ref string
	if local, ok := strings.CutPrefix(spec.Source, "dir://"); ok {
		ref, err = f.copyLocal(local, staged)
	} else {
		ref, err = f.fetchGit(ctx, spec, wantRef, staged)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", err
	}

	status := store.BuildNone
	if spec.Build != "" {
		status = store.BuildPending
	}
	meta := &store.InstalledExtension{
		Ref:         ref,
		Source:      spec.Source,
		InstalledAt: time.Now().UTC(),
		BuildStatus: status,
	}
	if err := f.store.Put(spec.Name, staged, meta); err != nil {
		return "", backoff.Permanent(err)
	}
	return ref, nil
}

// buildOutstanding reports whether an installed extension's build step
// still needs to run: it never completed, or its last attempt failed.
func (f *Fetcher) buildOutstanding(name string) bool {
	meta, err := f.store.Meta(name)
	if err != nil {
		return false
	}
	return meta.BuildStatus == store.BuildPending || meta.BuildStatus == store.BuildFailed
}

// build runs the extension's post-install command in its installed
// directory and records the outcome. A failing build does not undo the
// install; the extension stays on disk marked failed.
func (f *Fetcher) build(ctx context.Context, spec *manifest.ExtensionSpec) error {
	dir, err := f.store.Path(spec.Name)
	if err != nil {
		return err
	}

	cmd := platform.ScriptCommand(ctx, dir, spec.Build)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		f.store.SetBuildStatus(spec.Name, store.BuildFailed)
		return fmt.Errorf("build step for %s: %w", spec.Name, err)
	}
	return f.store.SetBuildStatus(spec.Name, store.BuildOK)
}
