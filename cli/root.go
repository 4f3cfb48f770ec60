// Package cli implements the world-mood commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/config"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
	"github.com/lixenwraith/world-mood/store/kafka"
	"github.com/lixenwraith/world-mood/store/memory"
	"github.com/lixenwraith/world-mood/store/remote"
	"github.com/lixenwraith/world-mood/store/sqlite"
)

var (
	configPath  string
	storeDriver string
	logLevel    string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "world-mood",
	Short: "A rotating terminal globe of the world's moods",
	Long: "Share a mood, watch everyone else's light up on a rotating ASCII globe.\n" +
		"Run \"world-mood serve\" to host a hub that several globes can share.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $WORLDMOOD_CONFIG or ./world-mood.yaml)")
	RootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver override: none, memory, sqlite, kafka, remote")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

// loadConfig reads the config file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: flags: %w", err)
	}
	return cfg, nil
}

// openStore builds the configured backend. Driver "none" returns a nil store.
func openStore(ctx context.Context, cfg config.StoreConfig, lg *slog.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		st, err := sqlite.NewSQLiteStore(cfg.SQLitePath, cfg.PollInterval)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "kafka":
		st, err := kafka.New(ctx, kafka.Config{
			Brokers:      cfg.Brokers(),
			MoodTopic:    cfg.MoodTopic,
			MessageTopic: cfg.MessageTopic,
		}, lg)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "remote":
		st, err := remote.New(ctx, cfg.RemoteURL, nil, lg)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// findLocation looks a city up in the catalog, case-insensitively
func findLocation(name string) (mood.Location, bool) {
	for _, loc := range mood.Catalog() {
		if strings.EqualFold(loc.Name, name) {
			return loc, true
		}
	}
	return mood.Location{}, false
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
