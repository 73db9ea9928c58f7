package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/loftpm/loft/internal/platform"
)

// excludedNames are entries skipped when copying local source trees.
var excludedNames = map[string]bool{
	".git":      true,
	".DS_Store": true,
}

// copyLocal copies a dir:// source tree into the staging directory and
// returns a content hash as the resolved ref, so an unchanged tree keeps
// an unchanged lockfile entry.
func (f *Fetcher) copyLocal(src, staged string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("local source %s: %w", src, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("local source %s is not a directory", src)
	}

	if err := copyDir(src, staged); err != nil {
		return "", fmt.Errorf("copying %s: %w", src, err)
	}

	ref, err := hashTree(staged)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", src, err)
	}
	return ref, nil
}

// copyDir recursively copies src into dst, which must already exist,
// skipping excluded entries.
func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if excludedNames[entry.Name()] {
			continue
		}

		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dstPath, info.Mode()); err != nil {
				return err
			}
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}

		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	// Preserve the source mode, e.g. executable hook scripts.
	return platform.Chmod(dst, info.Mode())
}

// hashTree computes a sha256 over relative paths and file contents.
func hashTree(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		io.WriteString(h, rel)

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(h, f)
		return err
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
