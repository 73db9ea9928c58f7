package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/loftpm/loft/internal/lockfile"
	"github.com/loftpm/loft/internal/manifest"
	"github.com/loftpm/loft/internal/store"
)

// fakeGit simulates the git binary: clones produce a one-file tree and
// rev-parse reports a commit derived from the checked-out ref.
type fakeGit struct {
	mu       sync.Mutex
	calls    []string
	tags     []string
	failShot map[string]int // source substring -> remaining failures
	head     string
	checked  map[string]string // staged dir -> ref
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		head:     "defaulthead",
		failShot: make(map[string]int),
		checked:  make(map[string]string),
	}
}

func (g *fakeGit) run(ctx context.Context, dir string, args ...string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, args[0])

	switch args[0] {
	case "clone":
		src, dst := args[2], args[3]
		for needle, left := range g.failShot {
			if strings.Contains(src, needle) && left > 0 {
				g.failShot[needle]--
				return "", fmt.Errorf("clone %s: connection reset", src)
			}
		}
		if err := os.WriteFile(filepath.Join(dst, "init.lua"), []byte("-- "+src), 0644); err != nil {
			return "", err
		}
		return "", nil
	case "checkout":
		g.checked[dir] = args[2]
		return "", nil
	case "rev-parse":
		if ref, ok := g.checked[dir]; ok {
			return "commit-" + ref, nil
		}
		return "commit-" + g.head, nil
	case "ls-remote":
		var lines []string
		for _, t := range g.tags {
			lines = append(lines, "0000\trefs/tags/"+t)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("unexpected git %s", args[0])
	}
}

func (g *fakeGit) count(verb string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == verb {
			n++
		}
	}
	return n
}

func newTestFetcher(t *testing.T, g *fakeGit) (*Fetcher, *store.Store, *lockfile.Lockfile) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}
	lf, err := lockfile.Load(filepath.Join(dir, lockfile.FileName))
	if err != nil {
		t.Fatal(err)
	}
	return New(st, lf, WithRunner(g.run), WithJobs(2)), st, lf
}

func TestEnsureInstallsAndLocks(t *testing.T) {
	g := newFakeGit()
	f, st, lf := newTestFetcher(t, g)

	specs := []manifest.ExtensionSpec{
		{Name: "a", Source: "https://example.com/a"},
		{Name: "b", Source: "https://example.com/b", Ref: "v2-branch"},
	}

	results := f.Ensure(context.Background(), specs)
	for _, r := range results {
		if r.Action != ActionInstalled {
			t.Errorf("%s: action = %v, want installed (%v)", r.Name, r.Action, r.Err)
		}
	}

	if !st.Installed("a") || !st.Installed("b") {
		t.Fatal("extensions not in store after Ensure")
	}
	if ref, _ := lf.Ref("b"); ref != "commit-v2-branch" {
		t.Errorf("locked ref for b = %q, want commit-v2-branch", ref)
	}
}

func TestEnsureIdempotentNoNetwork(t *testing.T) {
	g := newFakeGit()
	f, _, _ := newTestFetcher(t, g)

	specs := []manifest.ExtensionSpec{{Name: "a", Source: "https://example.com/a"}}
	if results := f.Ensure(context.Background(), specs); Failed(results) {
		t.Fatalf("first Ensure failed: %+v", results)
	}

	before := g.count("clone")
	results := f.Ensure(context.Background(), specs)
	if results[0].Action != ActionUnchanged {
		t.Errorf("action = %v, want unchanged", results[0].Action)
	}
	if g.count("clone") != before {
		t.Errorf("second Ensure performed %d extra clones, want 0", g.count("clone")-before)
	}
}

func TestEnsureRetriesOnceThenSucceeds(t *testing.T) {
	g := newFakeGit()
	g.failShot["flaky"] = 1
	f, st, _ := newTestFetcher(t, g)

	results := f.Ensure(context.Background(), []manifest.ExtensionSpec{
		{Name: "flaky", Source: "https://example.com/flaky"},
	})
	if results[0].Action != ActionInstalled {
		t.Fatalf("action = %v (%v), want installed after retry", results[0].Action, results[0].Err)
	}
	if !st.Installed("flaky") {
		t.Error("flaky extension not installed")
	}
	if n := g.count("clone"); n != 2 {
		t.Errorf("clone attempts = %d, want 2", n)
	}
}

func TestEnsurePartialFailure(t *testing.T) {
	g := newFakeGit()
	g.failShot["broken"] = 10 // fails beyond the single retry
	f, st, lf := newTestFetcher(t, g)

	results := f.Ensure(context.Background(), []manifest.ExtensionSpec{
		{Name: "healthy", Source: "https://example.com/healthy"},
		{Name: "broken", Source: "https://example.com/broken"},
	})

	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Name] = r
	}

	if byName["healthy"].Action != ActionInstalled {
		t.Errorf("healthy: %v, want installed", byName["healthy"].Action)
	}
	if byName["broken"].Action != ActionFailed {
		t.Errorf("broken: %v, want failed", byName["broken"].Action)
	}
	if byName["broken"].Err == nil {
		t.Error("broken: no error recorded")
	}
	if !Failed(results) {
		t.Error("Failed() = false with a failed extension")
	}
	if st.Installed("broken") {
		t.Error("broken extension present in store")
	}
	if _, ok := lf.Ref("broken"); ok {
		t.Error("broken extension gained a lockfile entry")
	}
}

func TestEnsureLocalDirSource(t *testing.T) {
	g := newFakeGit()
	f, st, _ := newTestFetcher(t, g)

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "init.lua"), []byte("return {}"), 0644); err != nil {
		t.Fatal(err)
	}

	specs := []manifest.ExtensionSpec{{Name: "local", Source: "dir://" + src}}
	results := f.Ensure(context.Background(), specs)
	if results[0].Action != ActionInstalled {
		t.Fatalf("action = %v (%v), want installed", results[0].Action, results[0].Err)
	}
	if g.count("clone") != 0 {
		t.Error("dir:// source touched git")
	}

	path, err := st.Path("local")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(path, "init.lua")); err != nil {
		t.Errorf("copied tree missing init.lua: %v", err)
	}

	// Unchanged source tree fetches nothing on re-run.
	results = f.Ensure(context.Background(), specs)
	if results[0].Action != ActionUnchanged {
		t.Errorf("re-run action = %v, want unchanged", results[0].Action)
	}
}

func TestUpdatePicksBestTag(t *testing.T) {
	g := newFakeGit()
	g.tags = []string{"v1.0.0", "v1.4.2", "v2.0.0", "not-a-version"}
	f, _, lf := newTestFetcher(t, g)

	specs := []manifest.ExtensionSpec{
		{Name: "tagged", Source: "https://example.com/tagged", Version: "^1.0"},
	}

	results := f.Update(context.Background(), specs)
	if results[0].Action != ActionInstalled {
		t.Fatalf("action = %v (%v)", results[0].Action, results[0].Err)
	}
	if ref, _ := lf.Ref("tagged"); ref != "commit-v1.4.2" {
		t.Errorf("locked ref = %q, want commit-v1.4.2", ref)
	}
}

func TestUpdateMovesHEAD(t *testing.T) {
	g := newFakeGit()
	f, _, lf := newTestFetcher(t, g)

	specs := []manifest.ExtensionSpec{{Name: "a", Source: "https://example.com/a"}}
	if results := f.Ensure(context.Background(), specs); Failed(results) {
		t.Fatal("Ensure failed")
	}

	g.head = "newhead"
	results := f.Update(context.Background(), specs)
	if results[0].Action != ActionUpdated {
		t.Errorf("action = %v, want updated", results[0].Action)
	}
	if ref, _ := lf.Ref("a"); ref != "commit-newhead" {
		t.Errorf("locked ref = %q, want commit-newhead", ref)
	}
}

func TestBuildStepRunsAndRecords(t *testing.T) {
	g := newFakeGit()
	f, st, _ := newTestFetcher(t, g)

	results := f.Ensure(context.Background(), []manifest.ExtensionSpec{
		{Name: "built", Source: "https://example.com/built", Build: "echo done > build.out"},
	})
	if Failed(results) {
		t.Fatalf("Ensure failed: %+v", results)
	}

	path, _ := st.Path("built")
	if _, err := os.Stat(filepath.Join(path, "build.out")); err != nil {
		t.Errorf("build step did not run: %v", err)
	}
	meta, err := st.Meta("built")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BuildStatus != store.BuildOK {
		t.Errorf("BuildStatus = %q, want ok", meta.BuildStatus)
	}
}

func TestBuildFailureMarksFailed(t *testing.T) {
	g := newFakeGit()
	f, st, _ := newTestFetcher(t, g)

	specs := []manifest.ExtensionSpec{
		{Name: "badbuild", Source: "https://example.com/badbuild", Build: "exit 1"},
	}
	results := f.Ensure(context.Background(), specs)
	if results[0].Err == nil {
		t.Error("build failure not reported in result")
	}
	if !results[0].Failed() || !Failed(results) {
		t.Error("build failure not counted as a failed result")
	}

	meta, err := st.Meta("badbuild")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BuildStatus != store.BuildFailed {
		t.Errorf("BuildStatus = %q, want failed", meta.BuildStatus)
	}

	// A re-run fetches nothing but still reports the broken build.
	results = f.Ensure(context.Background(), specs)
	if results[0].Action != ActionUnchanged {
		t.Errorf("re-run action = %v, want unchanged", results[0].Action)
	}
	if results[0].Err == nil || !Failed(results) {
		t.Error("re-run hid the failing build")
	}
}

func TestEnsureRebuildsAfterBuildFailure(t *testing.T) {
	g := newFakeGit()
	f, st, _ := newTestFetcher(t, g)

	// Fails on the first attempt, succeeds once the marker file exists.
	specs := []manifest.ExtensionSpec{{
		Name:   "flakybuild",
		Source: "https://example.com/flakybuild",
		Build:  "test -f primed || { touch primed; exit 1; }",
	}}

	results := f.Ensure(context.Background(), specs)
	if results[0].Err == nil {
		t.Fatal("first build did not fail")
	}

	clones := g.count("clone")
	results = f.Ensure(context.Background(), specs)
	if g.count("clone") != clones {
		t.Error("rebuild re-fetched an unchanged extension")
	}
	if results[0].Action != ActionUnchanged {
		t.Errorf("re-run action = %v, want unchanged", results[0].Action)
	}
	if results[0].Err != nil {
		t.Fatalf("rebuild failed: %v", results[0].Err)
	}

	meta, err := st.Meta("flakybuild")
	if err != nil {
		t.Fatal(err)
	}
	if meta.BuildStatus != store.BuildOK {
		t.Errorf("BuildStatus = %q, want ok after rebuild", meta.BuildStatus)
	}
}

func TestEnsureCancelledContext(t *testing.T) {
	g := newFakeGit()
	f, st, _ := newTestFetcher(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.Ensure(ctx, []manifest.ExtensionSpec{
		{Name: "late", Source: "https://example.com/late"},
	})
	// The fake runner ignores ctx, so either outcome is possible for the
	// fetch itself; what matters is the store stays consistent.
	if results[0].Action == ActionFailed && st.Installed("late") {
		t.Error("failed fetch left a tree in the store")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("sanity: context not cancelled")
	}
}
