package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/app"
	"github.com/lixenwraith/world-mood/audio"
	"github.com/lixenwraith/world-mood/config"
	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "globe",
		Short: "Open the terminal globe",
		Args:  cobra.NoArgs,
		RunE:  runGlobe,
	}

	cmd.Flags().Bool("mute", false, "Disable the mood chime")

	RootCmd.AddCommand(cmd)
}

func runGlobe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mute, _ := cmd.Flags().GetBool("mute"); mute {
		cfg.Audio.Enabled = false
	}

	lg, logCloser, err := logging.NewFile(cfg.Log)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store, lg)
	if err != nil {
		lg.Warn("store unavailable, running in demo mode", "driver", cfg.Store.Driver, "error", err)
		st = nil
	}
	if st != nil {
		defer st.Close()
	}

	var sound *audio.SoundManager
	if cfg.Audio.Enabled {
		sound = audio.NewSoundManager(cfg.Audio.Volume)
		if err := sound.Initialize(); err != nil {
			lg.Warn("audio unavailable", "error", err)
			sound = nil
		} else {
			defer sound.Cleanup()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	a, err := app.New(app.Options{
		Config:  cfg,
		Screen:  screen,
		Store:   st,
		Locator: newLocator(cfg.Location, lg),
		Sound:   sound,
		Logger:  lg,
	})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// newLocator builds the configured provider; nil means catalog fallback only
func newLocator(cfg config.LocationConfig, lg *slog.Logger) pipeline.LocationProvider {
	switch cfg.Provider {
	case "static":
		name := cfg.Name
		if name == "" {
			name = pipeline.UserLocationName
		}
		return pipeline.StaticLocator{Location: mood.Location{Name: name, Lat: cfg.Lat, Lng: cfg.Lng}}
	case "http":
		lg.Debug("using http location provider", "url", cfg.URL)
		return pipeline.NewCachedLocator(pipeline.NewHTTPLocator(cfg.URL, nil), cfg.MaxAge)
	}
	return nil
}
