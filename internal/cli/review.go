package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/output"
	"github.com/dshills/loupe/internal/providers"
	"github.com/dshills/loupe/internal/review"
	"github.com/dshills/loupe/internal/session"
)

// Review flags
var (
	flagLines       string
	flagInstruction string
	flagAssistant   string
	flagModel       string
	flagNoStream    bool
	flagFormat      string
	flagOut         string
	flagNoRedact    bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagLines, "lines", "", "Review only lines a:b of the file (1-based, inclusive)")
	cmd.Flags().StringVarP(&flagInstruction, "instruction", "q", "", "Instruction sent with the code; routes to a chat completion by default")
	cmd.Flags().StringVar(&flagAssistant, "assistant", "", "Assistant ID")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model for instructed reviews")
	cmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "Wait for the whole review instead of streaming it")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, markdown, json, pretty)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]string {
	m := globalOverrides()
	if flagAssistant != "" {
		m["assistant_id"] = flagAssistant
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagNoStream {
		m["stream"] = "false"
	}
	return m
}

// parseLines parses "a:b" into a 1-based inclusive range. Either bound may
// be omitted.
func parseLines(s string) (start, end int, err error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --lines %q (want a:b)", s)
	}
	start, end = 1, -1
	if a != "" {
		if start, err = strconv.Atoi(a); err != nil || start < 1 {
			return 0, 0, fmt.Errorf("invalid --lines start %q", a)
		}
	}
	if b != "" {
		if end, err = strconv.Atoi(b); err != nil || end < start {
			return 0, 0, fmt.Errorf("invalid --lines end %q", b)
		}
	}
	return start, end, nil
}

// selectLines returns lines start..end of doc. An end of -1 means the last line.
func selectLines(doc string, start, end int) string {
	lines := strings.SplitAfter(doc, "\n")
	if end < 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "")
}

func countLines(doc string) int {
	n := strings.Count(doc, "\n")
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		n++
	}
	return n
}

// readSource builds the review source from a file argument or stdin.
func readSource(cmd *cobra.Command, args []string) (session.Source, string, error) {
	var (
		src  session.Source
		mode = output.ModeDocument
	)
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return src, "", fmt.Errorf("reading stdin: %w", err)
		}
		src.FileName = "stdin"
		src.Document = string(data)
		mode = output.ModeStdin
	} else {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return src, "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		src.FileName = args[0]
		src.Document = string(data)
	}

	if flagLines != "" {
		start, end, err := parseLines(flagLines)
		if err != nil {
			return src, "", err
		}
		src.Selection = selectLines(src.Document, start, end)
		if src.Selection == "" {
			return src, "", fmt.Errorf("--lines %s is outside the file (%d lines)", flagLines, countLines(src.Document))
		}
		mode = output.ModeSelection
	}
	return src, mode, nil
}

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review a file, a line range of it, or code piped on stdin",
	Example: `  loupe review main.go
  loupe review main.go --lines 10:42
  git diff | loupe review -q "Check this diff for bugs"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		src, mode, err := readSource(cmd, args)
		if err != nil {
			return err
		}
		if strings.TrimSpace(src.Text()) == "" {
			return errors.New("nothing to review: the input is empty")
		}
		runReview(cmd, cfg, src, mode)
		return nil
	},
}

func runReview(cmd *cobra.Command, cfg config.Config, src session.Source, mode string) {
	stderr := cmd.ErrOrStderr()
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		cfg.Privacy.RedactPaths = nil
		warnColor.Fprintln(stderr, "WARNING: secret redaction is disabled")
	}

	sess, log, err := openSession(cfg)
	if err != nil {
		errorColor.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	writer, err := output.GetWriter(cfg.Format)
	if err != nil {
		errorColor.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	w := cmd.OutOrStdout()
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			errorColor.Fprintf(stderr, "Error creating output file: %v\n", err)
			exitCode = ExitRuntimeError
			return
		}
		defer f.Close()
		w = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	name := filepath.Base(src.FileName)
	if src.HasSelection() {
		fmt.Fprintf(stderr, "%s sent for review\n", name)
	}
	log.Debug("review started", "file", src.FileName, "mode", mode)

	streamer, streaming := writer.(output.Streamer)
	streaming = streaming && cfg.Stream

	var emit review.FragmentFunc
	if streaming {
		if err := streamer.Begin(w, output.Report{File: name, Mode: mode}); err != nil {
			log.Warn("writing output", "error", err)
		}
		emit = func(fragment string) {
			if err := streamer.Fragment(w, fragment); err != nil {
				log.Warn("writing output", "error", err)
			}
		}
	}

	start := time.Now()
	res := sess.Review(ctx, src, flagInstruction, emit)
	report := output.NewReport(name, mode, res, time.Since(start))

	if streaming {
		err = streamer.End(w, report)
	} else {
		err = writer.Write(w, report)
	}
	if err != nil {
		errorColor.Fprintf(stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if res.OK() {
		return
	}
	// Text and markdown output already carry the failure on stdout.
	if flagOut != "" || cfg.Format == "json" {
		errorColor.Fprintln(stderr, res.Text)
	}
	exitCode = reviewExitCode(res.Err)
}

func reviewExitCode(err error) int {
	if providers.IsAuthError(err) {
		return ExitAuthError
	}
	return ExitRuntimeError
}

func init() {
	addReviewFlags(reviewCmd)
}
