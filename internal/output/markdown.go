package output

import (
	"io"
	"strings"
)

// Heading opens every markdown review.
const Heading = "**AI Review:**\n\n"

// MarkdownWriter prints the review under the review heading. Failures are
// shown as a quote so they stand out in rendered markdown.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report Report) error {
	ew := &errWriter{w: w}
	ew.print(Heading)
	if report.Failed() {
		ew.printf("> %s\n", report.Text)
		return ew.err
	}
	ew.print(report.Text)
	if !strings.HasSuffix(report.Text, "\n") {
		ew.print("\n")
	}
	return ew.err
}

func (m *MarkdownWriter) Begin(w io.Writer, _ Report) error {
	_, err := io.WriteString(w, Heading)
	return err
}

func (m *MarkdownWriter) Fragment(w io.Writer, fragment string) error {
	_, err := io.WriteString(w, fragment)
	return err
}

func (m *MarkdownWriter) End(w io.Writer, report Report) error {
	ew := &errWriter{w: w}
	ew.print("\n")
	if report.Failed() {
		ew.printf("\n> %s\n", report.Text)
	}
	return ew.err
}

// markdownBody is the document PrettyWriter renders.
func markdownBody(report Report) string {
	var sb strings.Builder
	sb.WriteString(Heading)
	if report.Failed() {
		sb.WriteString("> " + report.Text + "\n")
	} else {
		sb.WriteString(report.Text)
	}
	return sb.String()
}
