package output

import (
	"io"
	"strings"
)

// TextWriter prints the raw review text.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report Report) error {
	ew := &errWriter{w: w}
	ew.print(report.Text)
	if !strings.HasSuffix(report.Text, "\n") {
		ew.print("\n")
	}
	return ew.err
}

func (t *TextWriter) Begin(io.Writer, Report) error { return nil }

func (t *TextWriter) Fragment(w io.Writer, fragment string) error {
	_, err := io.WriteString(w, fragment)
	return err
}

// End terminates the streamed text. A failure after partial output is
// printed on its own line.
func (t *TextWriter) End(w io.Writer, report Report) error {
	ew := &errWriter{w: w}
	ew.print("\n")
	if report.Failed() {
		ew.printf("%s\n", report.Text)
	}
	return ew.err
}
