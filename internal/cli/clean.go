package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanYes bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove extensions no longer in the manifest",
	Long: `Delete store entries and lockfile records for extensions the manifest
no longer references.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	st, lf, err := openState()
	if err != nil {
		return err
	}

	referenced := make(map[string]bool)
	for _, name := range m.Names() {
		referenced[name] = true
	}

	installed, err := st.List()
	if err != nil {
		return err
	}

	var orphans []string
	for _, ext := range installed {
		if !referenced[ext.Name] {
			orphans = append(orphans, ext.Name)
		}
	}
	for _, name := range lf.Names() {
		if !referenced[name] && !st.Installed(name) {
			lf.Delete(name)
		}
	}

	if len(orphans) == 0 {
		if err := lf.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean.")
		return nil
	}

	if !cleanYes {
		fmt.Fprintf(cmd.OutOrStdout(), "Removing %d extension(s): %v\n", len(orphans), orphans)
		if !confirm(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "Clean cancelled.")
			return nil
		}
	}

	failed := 0
	for _, name := range orphans {
		if err := st.Remove(name); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s: %v\n", name, err)
			failed++
			continue
		}
		lf.Delete(name)
		fmt.Fprintf(cmd.OutOrStdout(), "  ✓ removed %s\n", name)
	}

	if err := lf.Save(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d extension(s) could not be removed", failed)
	}
	return nil
}
