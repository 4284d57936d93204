package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP review API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := globalOverrides()
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		sess, log, err := openSession(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.ErrOrStderr(), "loupe %s listening on http://%s\n", version, cfg.Server.Addr)
		if err := server.NewServer(cfg.Server.Addr, sess, log).Run(ctx); err != nil {
			errorColor.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitRuntimeError
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default: server.addr from config)")
}
