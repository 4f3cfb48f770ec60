package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/pipeline"
	"github.com/lixenwraith/world-mood/store"
	"github.com/lixenwraith/world-mood/timewindow"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the moods stored for an hour in the past",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("hours", 1, "How many hours ago the window starts (0 = the last hour)")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	hours, _ := cmd.Flags().GetInt("hours")
	if hours < 0 {
		return fmt.Errorf("%w: %d hours", timewindow.ErrInvalidWindow, hours)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg.Store, logging.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if st == nil {
		return errNoStore
	}
	defer st.Close()

	now := time.Now()
	w := timewindow.Window{Hours: hours}
	from, to := w.Bounds(now)
	if w.IsLive() {
		from, to = now.Add(-cfg.History.Lookback), now
	}

	events, err := st.Range(cmd.Context(), from, to)
	if err != nil {
		return fmt.Errorf("range: %w", err)
	}

	if formatFlag == "json" {
		out := make([]store.EventRecord, 0, len(events))
		for _, ev := range events {
			out = append(out, store.FromEvent(ev))
		}
		return printJSON(cmd, out)
	}

	stats := pipeline.NewStats()
	stats.Recompute(events)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d moods", w.Label(), stats.Total())
	if stats.Total() > 0 {
		fmt.Fprintf(out, ", mostly %s", stats.Top().Label())
	}
	fmt.Fprintln(out)
	for _, ev := range events {
		fmt.Fprintf(out, "%s  %-9s %s\n", ev.Timestamp.Local().Format(time.TimeOnly), ev.Kind.Label(), ev.Location.Name)
	}
	return nil
}
