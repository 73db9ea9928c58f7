package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeExtension creates a local extension source tree with an init.lua.
func writeExtension(t *testing.T, root, name, script string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(script), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func setupEnv(t *testing.T, manifestYAML string) string {
	t.Helper()
	home := t.TempDir()
	manifest := filepath.Join(home, "loft.yaml")
	if err := os.WriteFile(manifest, []byte(manifestYAML), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOFT_STORE_ROOT", filepath.Join(home, "store"))
	t.Setenv("LOFT_MANIFEST", manifest)
	return home
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInstallListCleanRoundTrip(t *testing.T) {
	srcRoot := t.TempDir()
	writeExtension(t, srcRoot, "alpha", "function setup(c) return true end")
	writeExtension(t, srcRoot, "beta", "")

	home := setupEnv(t, `
extensions:
  - name: alpha
    source: dir://`+filepath.Join(srcRoot, "alpha")+`
  - name: beta
    source: dir://`+filepath.Join(srcRoot, "beta")+`
    depends: [alpha]
`)

	out, err := runCommand(t, "install")
	if err != nil {
		t.Fatalf("install: %v\n%s", err, out)
	}
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Errorf("install output missing extensions:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(home, "loft.lock")); err != nil {
		t.Errorf("lockfile not created: %v", err)
	}

	out, err = runCommand(t, "list")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "alpha") {
		t.Errorf("list output missing alpha:\n%s", out)
	}

	// Shrink the manifest and clean the orphan.
	if err := os.WriteFile(filepath.Join(home, "loft.yaml"), []byte(`
extensions:
  - name: alpha
    source: dir://`+filepath.Join(srcRoot, "alpha")+`
`), 0644); err != nil {
		t.Fatal(err)
	}

	out, err = runCommand(t, "clean", "--yes")
	if err != nil {
		t.Fatalf("clean: %v\n%s", err, out)
	}
	if !strings.Contains(out, "removed beta") {
		t.Errorf("clean did not remove beta:\n%s", out)
	}
}

func TestInstallFailsOnBuildFailure(t *testing.T) {
	srcRoot := t.TempDir()
	writeExtension(t, srcRoot, "badbuild", "")

	setupEnv(t, `
extensions:
  - name: badbuild
    source: dir://`+filepath.Join(srcRoot, "badbuild")+`
    build: "exit 1"
`)

	out, err := runCommand(t, "install")
	if err == nil {
		t.Fatalf("install exited zero with a failed build:\n%s", out)
	}
	if !strings.Contains(out, "1 failed") {
		t.Errorf("summary does not count the failed build:\n%s", out)
	}
}

func TestInstallRejectsInvalidManifest(t *testing.T) {
	setupEnv(t, `
extensions:
  - name: "bad name!"
    source: dir:///nowhere
`)

	if out, err := runCommand(t, "install"); err == nil {
		t.Fatalf("install accepted invalid manifest:\n%s", out)
	}
}

func TestInstallRejectsCycle(t *testing.T) {
	setupEnv(t, `
extensions:
  - name: a
    source: dir:///src/a
    depends: [b]
  - name: b
    source: dir:///src/b
    depends: [a]
`)

	out, err := runCommand(t, "install")
	if err == nil {
		t.Fatalf("install accepted cyclic manifest:\n%s", out)
	}
	if !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("err = %v, want cyclic dependency", err)
	}
}

func TestLoadActivatesEagerAndDeferred(t *testing.T) {
	srcRoot := t.TempDir()
	writeExtension(t, srcRoot, "eagerx", "function setup(c) return true end")
	writeExtension(t, srcRoot, "lazyy", "function setup(c) return true end")

	setupEnv(t, `
extensions:
  - name: eagerx
    source: dir://`+filepath.Join(srcRoot, "eagerx")+`
  - name: lazyy
    source: dir://`+filepath.Join(srcRoot, "lazyy")+`
    event: "cmd:Open"
`)

	if out, err := runCommand(t, "install"); err != nil {
		t.Fatalf("install: %v\n%s", err, out)
	}

	out, err := runCommand(t, "load")
	if err != nil {
		t.Fatalf("load: %v\n%s", err, out)
	}
	if !lineContains(out, "eagerx", "loaded") {
		t.Errorf("eagerx not loaded:\n%s", out)
	}
	if !lineContains(out, "lazyy", "not-loaded") {
		t.Errorf("lazyy loaded without its trigger:\n%s", out)
	}

	out, err = runCommand(t, "load", "--event", "cmd:Open")
	if err != nil {
		t.Fatalf("load --event: %v\n%s", err, out)
	}
	if !lineContains(out, "lazyy", "loaded") || lineContains(out, "lazyy", "not-loaded") {
		t.Errorf("lazyy not loaded after cmd:Open:\n%s", out)
	}
}

func lineContains(out string, needles ...string) bool {
	for line := range strings.Lines(out) {
		ok := true
		for _, n := range needles {
			if !strings.Contains(line, n) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
