package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loftpm/loft/internal/activator"
	"github.com/loftpm/loft/internal/events"
	"github.com/loftpm/loft/internal/luahost"
	"github.com/loftpm/loft/internal/resolver"
)

var (
	loadEvents []string
	loadWatch  bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Activate installed extensions and report their states",
	Long: `Register every manifest extension with the activator, run the eager
load pass, and optionally fire trigger events (--event cmd:Open,
--event ft:go) to exercise deferred extensions. Prints the resulting
activation state per extension.

With --watch, stays running and re-reads the manifest whenever it
changes on disk, activating newly declared eager extensions.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringArrayVar(&loadEvents, "event", nil, "Host event to fire after the eager pass (kind:value)")
	loadCmd.Flags().BoolVar(&loadWatch, "watch", false, "Keep running and react to manifest changes")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	order, err := resolver.Order(m)
	if err != nil {
		return err
	}

	st, _, err := openState()
	if err != nil {
		return err
	}

	runner := luahost.New(st)
	act := activator.New(runner.Setup)
	for _, spec := range order {
		if err := act.Register(spec); err != nil {
			return err
		}
	}

	bus := events.NewBus()
	unbind := act.Bind(bus)
	defer unbind()
	bus.Start()

	// Eager pass first; failures are reported in the table, not fatal.
	act.StartEager()

	for _, raw := range loadEvents {
		ev, err := parseEvent(raw)
		if err != nil {
			bus.Stop()
			return err
		}
		bus.Post(ev)
	}

	if loadWatch {
		if err := watchManifest(cmd, act, bus); err != nil {
			bus.Stop()
			return err
		}
	}

	bus.Stop()
	return printStates(cmd, act)
}

// watchManifest blocks until interrupted, re-registering manifest
// extensions whenever the file changes.
func watchManifest(cmd *cobra.Command, act *activator.Activator, bus *events.Bus) error {
	w, err := events.Watch(manifestPath(), bus)
	if err != nil {
		return err
	}
	defer w.Close()

	unsub := bus.Subscribe(func(ev events.Event) {
		if ev.Kind != events.KindManifest {
			return
		}
		if err := registerNew(act); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "manifest reload: %v\n", err)
			return
		}
		act.StartEager()
		fmt.Fprintf(cmd.OutOrStdout(), "manifest reloaded: %s\n", ev.Value)
	})
	defer unsub()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", manifestPath())
	<-ctx.Done()
	return nil
}

// registerNew re-reads the manifest and registers extensions that were
// added since the last pass. Existing registrations keep their state.
func registerNew(act *activator.Activator) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}
	order, err := resolver.Order(m)
	if err != nil {
		return err
	}
	for _, spec := range order {
		if err := act.Register(spec); err != nil && !errors.Is(err, activator.ErrAlreadyRegistered) {
			return err
		}
	}
	return nil
}

// printStates writes the per-extension activation table and returns an
// error if any extension failed to load.
func printStates(cmd *cobra.Command, act *activator.Activator) error {
	failed := 0
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tERROR")
	for _, s := range act.Statuses() {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.State, errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d extension(s) failed to load", failed)
	}
	return nil
}

// parseEvent turns "cmd:Open" / "ft:go" / "key:<c-p>" into a bus event.
func parseEvent(raw string) (events.Event, error) {
	kind, value, ok := strings.Cut(raw, ":")
	if !ok || value == "" {
		return events.Event{}, fmt.Errorf("malformed event %q, want kind:value", raw)
	}
	switch kind {
	case "cmd":
		return events.Event{Kind: events.KindCommand, Value: value}, nil
	case "ft":
		return events.Event{Kind: events.KindFileType, Value: value}, nil
	case "key":
		return events.Event{Kind: events.KindKey, Value: value}, nil
	default:
		return events.Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
}
