package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loftpm/loft/internal/fetcher"
	"github.com/loftpm/loft/internal/resolver"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install manifest extensions into the store",
	Long: `Resolve the manifest's dependency order and fetch every extension at
its locked ref (or the remote HEAD on first install). Already-installed
extensions at the locked ref are skipped without network activity.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	order, err := resolver.Order(m)
	if err != nil {
		return err
	}

	st, lf, err := openState()
	if err != nil {
		return err
	}

	f := newFetcher(st, lf)
	results := f.Ensure(cmd.Context(), order)

	if err := lf.Save(); err != nil {
		return err
	}

	printResults(cmd.OutOrStdout(), results)
	return failIfAnyFailed(results)
}

// printResults writes the per-extension status table.
func printResults(out io.Writer, results []fetcher.Result) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		switch r.Action {
		case fetcher.ActionFailed:
			fmt.Fprintf(w, "  ✗\t%s\t%s\t%v\n", r.Name, r.Action, r.Err)
		default:
			mark := "✓"
			note := shortRef(r.Ref)
			if r.Err != nil {
				// Fetched but the build step failed.
				mark = "⚠"
				note = fmt.Sprintf("%s (%v)", note, r.Err)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", mark, r.Name, r.Action, note)
		}
	}
	w.Flush()

	installed, failed := 0, 0
	for _, r := range results {
		if r.Failed() {
			failed++
		} else {
			installed++
		}
	}
	fmt.Fprintf(out, "\n%d extension(s) up to date", installed)
	if failed > 0 {
		fmt.Fprintf(out, ", %d failed", failed)
	}
	fmt.Fprintln(out)
}

func failIfAnyFailed(results []fetcher.Result) error {
	if fetcher.Failed(results) {
		n := 0
		for _, r := range results {
			if r.Failed() {
				n++
			}
		}
		return fmt.Errorf("%d extension(s) failed", n)
	}
	return nil
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}
