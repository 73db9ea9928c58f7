// Package config wires Viper to the Loft config file and environment.
// Settings resolve from LOFT_* environment variables first, then
// ~/.loft/config.yaml, then built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/loftpm/loft/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Config keys.
const (
	KeyStoreRoot = "store_root"
	KeyManifest  = "manifest"
	KeyJobs      = "jobs"
	KeyGitBin    = "git_bin"
)

// Dir returns the path to the Loft config directory (~/.loft/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.loft/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", Dir(), err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment
// and installs defaults.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyStoreRoot, filepath.Join(Dir(), "store"))
	viper.SetDefault(KeyManifest, filepath.Join(Dir(), "loft.yaml"))
	viper.SetDefault(KeyJobs, 4)
	viper.SetDefault(KeyGitBin, "git")

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// StoreRoot returns the store root directory.
func StoreRoot() string {
	return viper.GetString(KeyStoreRoot)
}

// ManifestPath returns the manifest file path.
func ManifestPath() string {
	return viper.GetString(KeyManifest)
}

// LockfilePath returns the lockfile path, which lives next to the
// manifest so both land in the same version-controlled directory.
func LockfilePath() string {
	return filepath.Join(filepath.Dir(ManifestPath()), "loft.lock")
}

// Jobs returns the fetch concurrency.
func Jobs() int {
	return viper.GetInt(KeyJobs)
}

// GitBin returns the git binary used for fetching, "git" by default.
func GitBin() string {
	return viper.GetString(KeyGitBin)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
