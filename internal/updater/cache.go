package updater

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFileName = "release-check.json"
	cacheMaxAge   = 24 * time.Hour
)

// checkCache is the on-disk record of the last release check.
type checkCache struct {
	Current         string    `json:"current"`
	Latest          string    `json:"latest"`
	UpdateAvailable bool      `json:"update_available"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
}

func loadCache(configDir string) (*checkCache, error) {
	data, err := os.ReadFile(filepath.Join(configDir, cacheFileName))
	if err != nil {
		return nil, err
	}
	var c checkCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing release cache: %w", err)
	}
	return &c, nil
}

func saveCache(configDir string, res *CheckResult) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(checkCache{
		Current:         res.Current,
		Latest:          res.Latest,
		UpdateAvailable: res.UpdateAvailable,
		ReleaseURL:      res.ReleaseURL,
		CheckedAt:       time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling release cache: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, cacheFileName), data, 0644)
}

func cacheStale(c *checkCache) bool {
	return c == nil || time.Since(c.CheckedAt) > cacheMaxAge
}
