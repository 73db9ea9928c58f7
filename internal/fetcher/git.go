package fetcher

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/loftpm/loft/internal/manifest"
)

// Runner executes a git subcommand in dir (empty dir means no working
// directory) and returns its combined output. It exists so tests can stub
// out the git binary.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// execRunner shells out to git on PATH.
var execRunner = GitRunner("git")

// GitRunner returns a Runner that executes the given git binary.
func GitRunner(bin string) Runner {
	return func(ctx context.Context, dir string, args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("%s %s: %w: %s", bin, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// fetchGit clones the source into the staging directory at the wanted ref
// and returns the commit hash actually checked out.
//
// Ref selection when wantRef is empty (no lock entry, or an update run):
// spec.Ref if pinned, else the best tag for spec.Version, else the remote
// default branch HEAD.
func (f *Fetcher) fetchGit(ctx context.Context, spec *manifest.ExtensionSpec, wantRef, staged string) (string, error) {
	checkout := wantRef
	if checkout == "" {
		switch {
		case spec.Ref != "":
			checkout = spec.Ref
		case spec.Version != "":
			tags, err := f.remoteTags(ctx, spec.Source)
			if err != nil {
				return "", err
			}
			tag, err := PickTag(tags, spec.Version)
			if err != nil {
				return "", fmt.Errorf("extension %s: %w", spec.Name, err)
			}
			checkout = tag
		}
	}

	if _, err := f.runner(ctx, "", "clone", "--quiet", spec.Source, staged); err != nil {
		return "", err
	}

	if checkout != "" {
		if _, err := f.runner(ctx, staged, "checkout", "--quiet", checkout); err != nil {
			return "", err
		}
	}

	return f.runner(ctx, staged, "rev-parse", "HEAD")
}

// remoteTags lists tag names on the remote without cloning.
func (f *Fetcher) remoteTags(ctx context.Context, url string) ([]string, error) {
	out, err := f.runner(ctx, "", "ls-remote", "--tags", "--refs", url)
	if err != nil {
		return nil, err
	}

	var tags []string
	for line := range strings.Lines(out) {
		_, ref, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		if tag, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}
