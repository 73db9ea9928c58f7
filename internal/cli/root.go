package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loftpm/loft/internal/branding"
	"github.com/loftpm/loft/internal/config"
	"github.com/loftpm/loft/internal/fetcher"
	"github.com/loftpm/loft/internal/lockfile"
	"github.com/loftpm/loft/internal/manifest"
	"github.com/loftpm/loft/internal/store"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagManifest string
	flagJobs     int
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs and activates extensions declared in a manifest.
Extensions are fetched into a local store at the refs recorded in the
lockfile, then loaded eagerly at startup or deferred until a trigger
event (command, filetype, key press) fires.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagManifest, "manifest", "", "Manifest file (default ~/.loft/loft.yaml)")
	rootCmd.PersistentFlags().IntVar(&flagJobs, "jobs", 0, "Fetch concurrency (default from config)")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}

// manifestPath resolves the manifest location from the flag or config.
func manifestPath() string {
	if flagManifest != "" {
		return flagManifest
	}
	return config.ManifestPath()
}

// jobs resolves fetch concurrency from the flag or config.
func jobs() int {
	if flagJobs > 0 {
		return flagJobs
	}
	return config.Jobs()
}

// loadManifest validates and parses the manifest, turning schema issues
// into a readable error before any I/O happens.
func loadManifest() (*manifest.Manifest, error) {
	path := manifestPath()

	res, err := manifest.ValidateFile(path)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		msg := fmt.Sprintf("manifest %s is invalid:", path)
		for _, issue := range res.Issues {
			msg += fmt.Sprintf("\n  %s: %s", issue.Path, issue.Message)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return manifest.Load(path)
}

// confirm prompts for a yes/no answer on stdin, defaulting to yes.
func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "? Proceed? (Y/n) ")
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "" || answer == "y" || answer == "yes"
	}
	return false
}

// newFetcher builds a fetcher from the active configuration.
func newFetcher(st *store.Store, lf *lockfile.Lockfile) *fetcher.Fetcher {
	return fetcher.New(st, lf,
		fetcher.WithJobs(jobs()),
		fetcher.WithRunner(fetcher.GitRunner(config.GitBin())),
	)
}

// openState opens the store and lockfile the commands operate on.
func openState() (*store.Store, *lockfile.Lockfile, error) {
	st, err := store.Open(config.StoreRoot())
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	lf, err := lockfile.Load(config.LockfilePath())
	if err != nil {
		return nil, nil, err
	}
	return st, lf, nil
}
