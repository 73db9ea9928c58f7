package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loftpm/loft/internal/manifest"
	"github.com/loftpm/loft/internal/resolver"
)

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Update extensions to their newest matching refs",
	Long: `Re-resolve refs ignoring the lockfile: extensions with a version
constraint move to the best matching tag, pinned refs are re-fetched, and
everything else moves to the remote HEAD. With a name argument only that
extension updates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	order, err := resolver.Order(m)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		name := args[0]
		var filtered []manifest.ExtensionSpec
		for _, spec := range order {
			if spec.Name == name {
				filtered = append(filtered, spec)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("extension %q is not in the manifest", name)
		}
		if deps := resolver.Dependents(m)[name]; len(deps) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "note: %v depend(s) on %s\n", deps, name)
		}
		order = filtered
	}

	st, lf, err := openState()
	if err != nil {
		return err
	}

	f := newFetcher(st, lf)
	results := f.Update(cmd.Context(), order)

	if err := lf.Save(); err != nil {
		return err
	}

	printResults(cmd.OutOrStdout(), results)
	return failIfAnyFailed(results)
}
