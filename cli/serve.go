package cli

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/hub"
	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/store/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a hub that shares moods between globes",
		Long:  "Serves the configured store over HTTP and websockets. Driver \"none\" serves an in-memory store.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: hub.addr)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Hub.Addr = addr
	}

	lg := logging.New(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store, lg)
	if err != nil {
		return err
	}
	if st == nil {
		lg.Info("no store configured, serving in-memory moods")
		st = memory.New()
	}
	defer st.Close()

	var access io.Writer
	if cfg.Hub.AccessLog {
		access = os.Stdout
	}
	return hub.NewServer(st, lg, access).Run(ctx, cfg.Hub.Addr)
}
