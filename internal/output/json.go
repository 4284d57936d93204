package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter outputs the report as a JSON object.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
