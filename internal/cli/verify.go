package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/session"
)

const verifyTimeout = 30 * time.Second

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check credentials and assistant IDs against the API",
}

var verifyKeyCmd = &cobra.Command{
	Use:   "key [key]",
	Short: "Check that an API key is accepted (default: the configured key)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalOverrides())
		if err != nil {
			return err
		}
		key := cfg.APIKey
		if len(args) == 1 {
			key = args[0]
		}
		if key == "" {
			return errors.New("no API key given and none configured")
		}
		sess, _, err := openSession(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
		defer cancel()
		if !sess.CheckAPIKey(ctx, key) {
			errorColor.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", session.ErrInvalidAPIKey)
			exitCode = ExitAuthError
			return nil
		}
		successColor.Fprintf(cmd.OutOrStdout(), "OK: API key is valid\n")
		return nil
	},
}

var verifyAssistantCmd = &cobra.Command{
	Use:   "assistant <id>",
	Short: "Check that an assistant exists for the configured key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalOverrides())
		if err != nil {
			return err
		}
		sess, _, err := openSession(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
		defer cancel()
		if !sess.CheckAssistant(ctx, args[0]) {
			errorColor.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", session.ErrInvalidAssistant)
			exitCode = ExitAuthError
			return nil
		}
		successColor.Fprintf(cmd.OutOrStdout(), "OK: assistant %s is available\n", args[0])
		if cfg.AssistantID != args[0] {
			fmt.Fprintf(cmd.OutOrStdout(), "Run `loupe config set assistant_id %s` to use it by default.\n", args[0])
		}
		return nil
	},
}

func init() {
	verifyCmd.AddCommand(verifyKeyCmd)
	verifyCmd.AddCommand(verifyAssistantCmd)
}
