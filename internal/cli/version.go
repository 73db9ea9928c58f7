package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loftpm/loft/internal/branding"
	"github.com/loftpm/loft/internal/config"
	"github.com/loftpm/loft/internal/updater"
)

var (
	versionShort bool
	versionJSON  bool
	versionCheck bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionCheck {
			return runVersionCheck(cmd)
		}

		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), buildVersion)
			return nil
		}

		if versionJSON {
			info := map[string]string{
				"version": buildVersion,
				"commit":  buildCommit,
				"date":    buildDate,
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (commit: %s, built: %s)\n",
			branding.CLIName(), buildVersion, buildCommit, buildDate)
		return nil
	},
}

func runVersionCheck(cmd *cobra.Command) error {
	u := updater.New(buildVersion, config.Dir())
	res, err := u.Check(cmd.Context())
	if err != nil {
		return err
	}

	if versionJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling check result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if res.UpdateAvailable {
		fmt.Fprintf(cmd.OutOrStdout(), "Update available: %s -> %s\n  %s\n",
			res.Current, res.Latest, res.ReleaseURL)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s is up to date (latest: %s)\n",
			branding.CLIName(), res.Current, res.Latest)
	}
	return nil
}
