package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured key can use",
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
		models, err := sess.Models(ctx)
		if err != nil {
			errorColor.Fprintf(cmd.ErrOrStderr(), "FAIL: %v\n", err)
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		slices.Sort(models)
		out := cmd.OutOrStdout()
		for _, m := range models {
			marker := " "
			if m == cfg.Model {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
		return nil
	},
}
