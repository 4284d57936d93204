package cli

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/logger"
	"github.com/dshills/loupe/internal/session"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// Global flags
var (
	flagAPIKey   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "AI code review from the terminal, an editor or a local HTTP API",
	Long: `Loupe sends code to an OpenAI assistant or chat model and prints the review.

Without an instruction a review goes to the configured assistant on a fresh
thread that is deleted afterwards. With an instruction (-q) it is answered by a
single chat completion.`,
	SilenceUsage: true,
}

var registerOnce sync.Once

func registerCommands() {
	registerOnce.Do(func() {
		rootCmd.AddCommand(reviewCmd)
		rootCmd.AddCommand(verifyCmd)
		rootCmd.AddCommand(modelsCmd)
		rootCmd.AddCommand(configCmd)
		rootCmd.AddCommand(cacheCmd)
		rootCmd.AddCommand(editorCmd)
		rootCmd.AddCommand(serveCmd)
		rootCmd.AddCommand(versionCmd)
	})
}

// Run executes the root command and returns an exit code.
func Run() int {
	registerCommands()

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// backendFactory builds backends for every session the CLI opens.
var backendFactory session.BackendFactory = session.DefaultFactory

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (default: $LOUPE_API_KEY or $OPENAI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// globalOverrides returns config overrides from the persistent flags.
func globalOverrides() map[string]string {
	m := make(map[string]string)
	if flagAPIKey != "" {
		m["api_key"] = flagAPIKey
	}
	if flagLogLevel != "" {
		m["log.level"] = flagLogLevel
	}
	return m
}

// openSession builds the logger and a session from cfg.
func openSession(cfg config.Config) (*session.Session, *slog.Logger, error) {
	log := logger.NewLogger(logger.FromConfig(cfg), nil)
	opts, err := session.FromConfig(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	opts.Factory = backendFactory
	return session.New(opts), log, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print loupe version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "loupe version %s\n", version)
	},
}
