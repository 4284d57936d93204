package editor

import (
	"encoding/json"
	"strconv"

	"github.com/dshills/loupe/internal/config"
)

// Response types.
const (
	TypeOK       = "ok"
	TypeVersion  = "version"
	TypeProgress = "progress"
	TypeInfo     = "info"
	TypeWarning  = "warning"
	TypeError    = "error"
	TypeMarkdown = "markdown"
	TypeFragment = "fragment"
	TypeDone     = "done"
	TypeSettings = "settings"
)

// Messages shown to the editor user.
const (
	msgReviewing        = "AI is reviewing the code..."
	msgAPIKeyUpdated    = "API Key updated successfully!"
	msgAssistantUpdated = "Assistant ID updated successfully!"
	msgOrgUpdated       = "Organization updated successfully!"
	msgModelUpdated     = "Model updated successfully!"
	reviewHeading       = "**AI Review:**\n\n"
)

// Request is one line read from the editor.
type Request struct {
	Action    string          `json:"action"`
	RequestID json.RawMessage `json:"request_id,omitempty"`

	// review
	Prompt    string `json:"prompt,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Document  string `json:"document,omitempty"`
	Selection string `json:"selection,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`

	// settings updates
	Value string `json:"value,omitempty"`

	// cancel
	TargetRequestID json.RawMessage `json:"target_request_id,omitempty"`
}

// Response is one line written to the editor.
type Response struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Text      string           `json:"text,omitempty"`
	Version   string           `json:"version,omitempty"`
	Target    string           `json:"target,omitempty"`
	OK        *bool            `json:"ok,omitempty"`
	Settings  *config.Settings `json:"settings,omitempty"`
}

// idString normalizes a request id that may be a JSON string or number.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
