package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// PrettyWriter renders the review as terminal markdown. Style is a glamour
// standard style name ("dark", "light", "notty", ...); empty picks one based
// on the terminal.
type PrettyWriter struct {
	Style string
	Width int
}

var titleStyle = lipgloss.NewStyle().Bold(true)

func (p *PrettyWriter) Write(w io.Writer, report Report) error {
	r, err := p.renderer()
	if err != nil {
		return err
	}
	body, err := r.Render(markdownBody(report))
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	ew := &errWriter{w: w}
	ew.printf("%s\n", titleStyle.Render(title(report)))
	ew.print(body)
	return ew.err
}

func (p *PrettyWriter) renderer() (*glamour.TermRenderer, error) {
	width := p.Width
	if width <= 0 {
		width = 100
	}
	style := glamour.WithAutoStyle()
	if p.Style != "" {
		style = glamour.WithStandardStyle(p.Style)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r, nil
}

func title(report Report) string {
	parts := []string{"loupe"}
	if report.File != "" {
		parts = append(parts, report.File)
	}
	if report.Target != "" {
		parts = append(parts, report.Target)
	}
	if report.ElapsedMs > 0 {
		parts = append(parts, fmt.Sprintf("%dms", report.ElapsedMs))
	}
	return strings.Join(parts, " · ")
}
