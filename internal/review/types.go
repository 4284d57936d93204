package review

import (
	"fmt"
	"strings"
)

// Kind selects how a review is produced.
type Kind string

const (
	// KindAssistant reviews through a persistent assistant and a throwaway thread.
	KindAssistant Kind = "assistant"
	// KindModel reviews with a single stateless chat completion.
	KindModel Kind = "completion"
)

// ParseKind parses a routing value from configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assistant":
		return KindAssistant, nil
	case "completion", "model":
		return KindModel, nil
	default:
		return "", fmt.Errorf("unknown review kind %q (want assistant or completion)", s)
	}
}

// Selector names the remote target of a review.
type Selector struct {
	Kind Kind
	// Name is an assistant id for KindAssistant and a model name for KindModel.
	Name string
}

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool { return s.Kind == "" && s.Name == "" }

func (s Selector) String() string {
	if s.IsZero() {
		return "<unset>"
	}
	return string(s.Kind) + ":" + s.Name
}

// Request is one review invocation. A zero Selector is resolved by the
// orchestrator's Policy.
type Request struct {
	Instruction string
	SourceText  string
	Selector    Selector
}

// HasInstruction reports whether the request carries free-form instruction text.
func (r Request) HasInstruction() bool {
	return strings.TrimSpace(r.Instruction) != ""
}

// FragmentFunc receives each incremental piece of generated text.
type FragmentFunc func(fragment string)

// Result is the outcome of a review. When Err is set, Text holds the
// user-facing "Error: ..." string.
type Result struct {
	Text     string
	Err      error
	Selector Selector
	Streamed bool
}

// OK reports whether the review succeeded.
func (r Result) OK() bool { return r.Err == nil }

const errorPrefix = "Error: "

// Failure builds the Result reported for err.
func Failure(sel Selector, streamed bool, err error) Result {
	return Result{
		Text:     errorPrefix + err.Error(),
		Err:      err,
		Selector: sel,
		Streamed: streamed,
	}
}

// Policy maps "does the request carry an instruction" to a review kind.
type Policy struct {
	WithInstruction    Kind
	WithoutInstruction Kind
}

// DefaultPolicy sends instructed requests to a stateless completion and bare
// review requests to the persistent assistant.
func DefaultPolicy() Policy {
	return Policy{
		WithInstruction:    KindModel,
		WithoutInstruction: KindAssistant,
	}
}

// Route returns the review kind for a request.
func (p Policy) Route(req Request) Kind {
	if req.HasInstruction() {
		if p.WithInstruction == "" {
			return KindModel
		}
		return p.WithInstruction
	}
	if p.WithoutInstruction == "" {
		return KindAssistant
	}
	return p.WithoutInstruction
}
