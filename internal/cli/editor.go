package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/editor"
)

var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Serve editor plugins over JSON lines on stdin and stdout",
	Long: `Serve editor plugins over JSON lines on stdin and stdout.

Each input line is one request such as
  {"action":"review","request_id":1,"file_name":"a.go","document":"...","selection":"..."}
and every response line echoes its request_id. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalOverrides())
		if err != nil {
			return err
		}
		sess, log, err := openSession(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bridge := editor.New(sess, cmd.OutOrStdout(), version, log)
		log.Info("editor bridge started", "version", version)
		if err := bridge.Serve(ctx, cmd.InOrStdin()); err != nil && ctx.Err() == nil {
			errorColor.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitRuntimeError
		}
		return nil
	},
}
