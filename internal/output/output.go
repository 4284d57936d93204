package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dshills/loupe/internal/review"
)

// Source modes recorded in a Report.
const (
	ModeSelection = "selection"
	ModeDocument  = "document"
	ModeStdin     = "stdin"
)

// Report is a finished review ready to be written.
type Report struct {
	File      string `json:"file,omitempty"`
	Mode      string `json:"mode"`
	Target    string `json:"target"`
	Text      string `json:"text"`
	Err       string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// NewReport builds a report from a review result.
func NewReport(file, mode string, res review.Result, elapsed time.Duration) Report {
	r := Report{
		File:      file,
		Mode:      mode,
		Target:    res.Selector.String(),
		Text:      res.Text,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if res.Err != nil {
		r.Err = res.Err.Error()
	}
	return r
}

// Failed reports whether the review failed.
func (r Report) Failed() bool { return r.Err != "" }

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report Report) error
}

// Streamer prints a review while its fragments arrive. Begin is called once
// before the first fragment and End once after the last, with the final report.
type Streamer interface {
	Begin(w io.Writer, report Report) error
	Fragment(w io.Writer, fragment string) error
	End(w io.Writer, report Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "pretty":
		return &PrettyWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}
