package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed extensions",
	Long:  `List every extension in the store with its ref and build status.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed extension for display.
type listEntry struct {
	Name        string `json:"name"`
	Ref         string `json:"ref"`
	Source      string `json:"source,omitempty"`
	BuildStatus string `json:"build_status,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	st, _, err := openState()
	if err != nil {
		return err
	}

	installed, err := st.List()
	if err != nil {
		return err
	}

	if len(installed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extensions installed yet.")
		return nil
	}

	entries := make([]listEntry, 0, len(installed))
	for _, ext := range installed {
		entry := listEntry{
			Name:        ext.Name,
			Ref:         shortRef(ext.Ref),
			Source:      ext.Source,
			BuildStatus: string(ext.BuildStatus),
		}
		if !ext.InstalledAt.IsZero() {
			entry.InstalledAt = ext.InstalledAt.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	if listJSON {
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling list: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREF\tBUILD\tINSTALLED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Ref, e.BuildStatus, e.InstalledAt)
	}
	return w.Flush()
}
