package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/loftpm/loft/internal/branding"
)

const githubAPIBase = "https://api.github.com"

// Release is the subset of the GitHub release payload the check needs.
type Release struct {
	TagName     string `json:"tag_name"`
	HTMLURL     string `json:"html_url"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
}

// CheckResult reports whether a newer release exists.
type CheckResult struct {
	Current         string `json:"current"`
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
	ReleaseURL      string `json:"release_url,omitempty"`
}

// Updater queries the release feed for the configured repository.
type Updater struct {
	httpClient *http.Client
	apiBase    string
	configDir  string
	current    string
}

// Option configures an Updater.
type Option func(*Updater)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Updater) { u.httpClient = c }
}

// WithAPIBase overrides the GitHub API base URL, mainly for tests.
func WithAPIBase(base string) Option {
	return func(u *Updater) { u.apiBase = base }
}

// New returns an Updater for the given installed version. configDir is
// where the check cache lives.
func New(current, configDir string, opts ...Option) *Updater {
	u := &Updater{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    githubAPIBase,
		configDir:  configDir,
		current:    current,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Check returns the latest release compared against the installed
// version. A fresh cache entry short-circuits the network call.
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	if cached, err := loadCache(u.configDir); err == nil && !cacheStale(cached) && cached.Current == u.current {
		return &CheckResult{
			Current:         cached.Current,
			Latest:          cached.Latest,
			UpdateAvailable: cached.UpdateAvailable,
			ReleaseURL:      cached.ReleaseURL,
		}, nil
	}

	rel, err := u.latestRelease(ctx)
	if err != nil {
		return nil, err
	}

	newer, err := IsNewer(u.current, rel.TagName)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		Current:         u.current,
		Latest:          rel.TagName,
		UpdateAvailable: newer,
		ReleaseURL:      rel.HTMLURL,
	}
	// Cache failures only cost an extra check next time.
	_ = saveCache(u.configDir, res)
	return res, nil
}

// latestRelease fetches the repository's latest release from GitHub.
func (u *Updater) latestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", u.apiBase, branding.GitHubRepo())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", branding.CLIName()+"-updater")
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("no releases published for %s", branding.GitHubRepo())
	case http.StatusForbidden:
		return nil, fmt.Errorf("GitHub API rate limit exceeded, set GITHUB_TOKEN for higher limits")
	default:
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parsing release JSON: %w", err)
	}
	return &rel, nil
}

// IsNewer reports whether latest is a higher semver than current.
// Leading "v" prefixes are tolerated. A dev build never sees updates.
func IsNewer(current, latest string) (bool, error) {
	if current == "dev" || current == "" {
		return false, nil
	}
	cv, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false, fmt.Errorf("parsing current version %q: %w", current, err)
	}
	lv, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false, fmt.Errorf("parsing latest version %q: %w", latest, err)
	}
	return cv.LessThan(lv), nil
}
