package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/loupe/internal/review"
)

func okReport() Report {
	return Report{
		File:      "main.go",
		Mode:      ModeSelection,
		Target:    "assistant:asst_1",
		Text:      "Looks fine.\n\n- rename `x`",
		ElapsedMs: 1200,
	}
}

func failedReport() Report {
	return Report{
		Mode:   ModeDocument,
		Target: "completion:gpt-4o-mini",
		Text:   "Error: Run failed",
		Err:    "Run failed",
	}
}

func TestNewReport(t *testing.T) {
	res := review.Result{
		Text:     "Error: Run failed",
		Err:      errors.New("Run failed"),
		Selector: review.Selector{Kind: review.KindAssistant, Name: "asst_1"},
	}
	r := NewReport("a.py", ModeDocument, res, 1500*time.Millisecond)
	assert.Equal(t, "assistant:asst_1", r.Target)
	assert.True(t, r.Failed())
	assert.Equal(t, "Run failed", r.Err)
	assert.EqualValues(t, 1500, r.ElapsedMs)
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, okReport()))
	assert.Equal(t, "Looks fine.\n\n- rename `x`\n", buf.String())

	buf.Reset()
	require.NoError(t, (&TextWriter{}).Write(&buf, failedReport()))
	assert.Equal(t, "Error: Run failed\n", buf.String())
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, okReport()))
	assert.Equal(t, "**AI Review:**\n\nLooks fine.\n\n- rename `x`\n", buf.String())

	buf.Reset()
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, failedReport()))
	assert.Equal(t, "**AI Review:**\n\n> Error: Run failed\n", buf.String())
}

func TestStreamers(t *testing.T) {
	tests := []struct {
		name   string
		s      Streamer
		report Report
		want   string
	}{
		{"text ok", &TextWriter{}, okReport(), "Hello, world\n"},
		{"text failed", &TextWriter{}, failedReport(), "Hello, world\nError: Run failed\n"},
		{"markdown ok", &MarkdownWriter{}, okReport(), "**AI Review:**\n\nHello, world\n"},
		{"markdown failed", &MarkdownWriter{}, failedReport(), "**AI Review:**\n\nHello, world\n\n> Error: Run failed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.s.Begin(&buf, tt.report))
			for _, f := range []string{"Hello", ", ", "world"} {
				require.NoError(t, tt.s.Fragment(&buf, f))
			}
			require.NoError(t, tt.s.End(&buf, tt.report))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, failedReport()))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got), buf.String())
	for _, key := range []string{"mode", "target", "text", "error", "elapsedMs"} {
		assert.Contains(t, got, key)
	}
	assert.NotContains(t, got, "file", "empty file should be omitted")

	buf.Reset()
	require.NoError(t, (&JSONWriter{}).Write(&buf, okReport()))
	assert.NotContains(t, buf.String(), `"error"`, "successful report should omit error")
}

func TestPrettyWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &PrettyWriter{Style: "notty", Width: 60}
	require.NoError(t, w.Write(&buf, okReport()))
	out := buf.String()
	for _, part := range []string{"main.go", "assistant:asst_1", "1200ms", "AI Review:", "Looks fine."} {
		assert.Contains(t, out, part)
	}
}

func TestGetWriter(t *testing.T) {
	for _, f := range []string{"", "text", "markdown", "json", "pretty"} {
		_, err := GetWriter(f)
		assert.NoError(t, err, f)
	}
	_, err := GetWriter("sarif")
	assert.Error(t, err)

	w, err := GetWriter("json")
	require.NoError(t, err)
	assert.NotImplements(t, (*Streamer)(nil), w, "json writer should not stream")

	w, err = GetWriter("markdown")
	require.NoError(t, err)
	assert.Implements(t, (*Streamer)(nil), w)
}
