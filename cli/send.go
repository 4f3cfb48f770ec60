package cli

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

// OriginCLI marks events appended from the command line
const OriginCLI = "cli"

var errNoStore = errors.New("no store configured (set store.driver or --store)")

func init() {
	cmd := &cobra.Command{
		Use:   "send <kind>",
		Short: "Append a mood to the configured store",
		Args:  cobra.ExactArgs(1),
		RunE:  runSend,
	}

	cmd.Flags().StringP("location", "l", "", "Catalog city (default: random)")
	cmd.Flags().Float64("lat", 0, "Latitude, with --lng instead of a city")
	cmd.Flags().Float64("lng", 0, "Longitude, with --lat instead of a city")

	RootCmd.AddCommand(cmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	kind, err := mood.ParseKind(args[0])
	if err != nil {
		return err
	}

	loc, err := sendLocation(cmd)
	if err != nil {
		return err
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

	ev := mood.NewEvent(kind, loc, time.Now())
	ev.ID = store.NewID(ev.Timestamp)
	ev.Origin = OriginCLI
	if err := st.Append(cmd.Context(), ev); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	if formatFlag == "json" {
		return printJSON(cmd, store.FromEvent(ev))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s from %s\n", kind.Label(), loc.Name)
	return nil
}

func sendLocation(cmd *cobra.Command) (mood.Location, error) {
	name, _ := cmd.Flags().GetString("location")
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		if name == "" {
			name = "Somewhere"
		}
		loc := mood.Location{Name: name, Lat: lat, Lng: lng}
		return loc, loc.Validate()
	}
	if name == "" {
		return mood.RandomLocation(rand.New(rand.NewSource(time.Now().UnixNano()))), nil
	}
	loc, ok := findLocation(name)
	if !ok {
		return mood.Location{}, fmt.Errorf("%w: unknown city %q", mood.ErrInvalidLocation, name)
	}
	return loc, nil
}
