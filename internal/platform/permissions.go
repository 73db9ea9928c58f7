package platform

import (
	"os"
	"runtime"
)

// Chmod applies Unix permission bits to path, keeping copied extension
// files (hook scripts in particular) executable. Windows has no
// equivalent bits, so it is a no-op there.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}
