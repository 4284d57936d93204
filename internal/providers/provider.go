package providers

import (
	"context"
	"fmt"
)

// RunStatus is the coarse state of an assistant run as seen by a poller.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusUnknown   RunStatus = "unknown"
)

// Run is a snapshot of a remote assistant run.
type Run struct {
	ID     string
	Status RunStatus
	// Raw is the status string exactly as the server reported it.
	Raw string
	// LastError is the server-reported failure message, if any.
	LastError string
}

// Message is one message of a thread, reduced to its role and text parts.
type Message struct {
	Role string
	Text []string
}

// EventKind classifies a streamed run event.
type EventKind int

const (
	EventOther EventKind = iota
	EventMessageDelta
	EventRunCompleted
	EventRunFailed
)

// Event is one server-sent event of a streaming run.
type Event struct {
	Kind EventKind
	// Name is the raw event name, e.g. "thread.message.delta".
	Name string
	// Delta is the text increment of a message delta event.
	Delta string
	// Error is the failure message of a run failed event.
	Error string
}

// Stream is a pull-based sequence of values. It follows the shape of the
// OpenAI SDK's server-sent event stream.
type Stream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// Backend is the remote API surface the review orchestrator consumes.
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) error
	AddMessage(ctx context.Context, threadID, content string) error
	StartRun(ctx context.Context, threadID, assistantID string) (string, error)
	StreamRun(ctx context.Context, threadID, assistantID string) (Stream[Event], error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)

	Complete(ctx context.Context, model, prompt string) (string, error)
	StreamCompletion(ctx context.Context, model, prompt string) (Stream[string], error)

	ListModels(ctx context.Context) ([]string, error)
	GetAssistant(ctx context.Context, assistantID string) (string, error)

	Name() string
}

const defaultOllamaURL = "http://localhost:11434/v1/"

// Options configures a backend.
type Options struct {
	APIKey       string
	Organization string
	Project      string
	BaseURL      string
}

// New creates a backend by provider name.
func New(provider string, opts Options) (Backend, error) {
	switch provider {
	case "", "openai":
		return NewOpenAI(opts)
	case "ollama", "lmstudio":
		// Local servers only speak the chat completions subset.
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOllamaURL
		}
		if opts.APIKey == "" {
			opts.APIKey = provider
		}
		return NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
