package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write the loupe config file",
	Long: `Settings are resolved as defaults, then the config file, then LOUPE_*
environment variables, then flags. The API key is only ever read from the
environment or --api-key and is never written to the file.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file holding the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !flagConfigForce {
			warnColor.Fprintf(cmd.ErrOrStderr(), "%s already exists (use --force to overwrite)\n", path)
			return nil
		}
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		successColor.Fprintf(cmd.OutOrStdout(), "Wrote defaults to %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one key in the config file",
	Example: `  loupe config set assistant_id asst_abc123
  loupe config set routing.without_instruction completion
  loupe config set privacy.redact_paths "**/.env,**/*secrets*,deploy/**"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile()
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
		if err != nil {
			return err
		}
		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings, one key per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalOverrides())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, f := range cfg.Fields() {
			fmt.Fprintf(tw, "%s\t%s\n", f.Key, f.Value)
		}
		return tw.Flush()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagConfigForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configPathCmd, configInitCmd, configSetCmd, configShowCmd)
}
