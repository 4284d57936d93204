package review

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/loupe/internal/providers"
)

const (
	// DefaultPollInterval is the wait between run status checks.
	DefaultPollInterval = time.Second
	cleanupTimeout      = 30 * time.Second
)

// Options configures an Orchestrator. Zero values pick the defaults.
type Options struct {
	// AssistantID is used when a request routes to the persistent assistant.
	AssistantID string
	// Model is used when a request routes to a stateless completion.
	Model        string
	Policy       Policy
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Orchestrator produces reviews against one backend. It holds no state
// between calls; every review owns its own thread.
type Orchestrator struct {
	backend      providers.Backend
	assistantID  string
	model        string
	policy       Policy
	pollInterval time.Duration
	sleep        sleepFunc
	logger       *slog.Logger
}

// New creates an orchestrator.
func New(backend providers.Backend, opts Options) *Orchestrator {
	o := &Orchestrator{
		backend:      backend,
		assistantID:  opts.AssistantID,
		model:        opts.Model,
		policy:       opts.Policy,
		pollInterval: opts.PollInterval,
		sleep:        sleepContext,
		logger:       opts.Logger,
	}
	if o.policy == (Policy{}) {
		o.policy = DefaultPolicy()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Resolve returns the selector a request will be served with.
func (o *Orchestrator) Resolve(req Request) Selector {
	if !req.Selector.IsZero() {
		return req.Selector
	}
	switch o.policy.Route(req) {
	case KindAssistant:
		return Selector{Kind: KindAssistant, Name: o.assistantID}
	default:
		return Selector{Kind: KindModel, Name: o.model}
	}
}

// Review produces a review for req. When emit is non-nil the text is
// streamed through it as it arrives. Review never returns an error
// directly: failures are reported in the Result.
func (o *Orchestrator) Review(ctx context.Context, req Request, emit FragmentFunc) Result {
	sel := o.Resolve(req)
	streamed := supportsStreaming(emit)
	prompt := BuildPrompt(req.Instruction, req.SourceText)

	var (
		text string
		err  error
	)
	switch {
	case sel.Name == "":
		err = ErrNoTarget
	case sel.Kind == KindAssistant:
		text, err = o.reviewWithAssistant(ctx, sel.Name, prompt, emit)
	default:
		text, err = o.reviewWithCompletion(ctx, sel.Name, prompt, emit)
	}
	if err != nil {
		o.logger.Warn("review failed", "target", sel.String(), "error", err)
		return Failure(sel, streamed, err)
	}
	return Result{Text: text, Selector: sel, Streamed: streamed}
}

func (o *Orchestrator) reviewWithAssistant(ctx context.Context, assistantID, prompt string, emit FragmentFunc) (text string, err error) {
	threadID, err := o.backend.CreateThread(ctx)
	if err != nil {
		return "", transport("creating thread", err)
	}
	o.logger.Debug("thread created", "thread", threadID, "assistant", assistantID)
	defer func() {
		if derr := o.deleteThread(ctx, threadID); derr != nil {
			text = ""
			err = errors.Join(err, derr)
		}
	}()

	if err := o.backend.AddMessage(ctx, threadID, prompt); err != nil {
		return "", transport("adding message", err)
	}
	acq := newAcquirer(emit, o.pollInterval, o.sleep, o.logger)
	return acq.acquire(ctx, o.backend, threadID, assistantID)
}

// deleteThread removes the thread even when ctx has been cancelled.
func (o *Orchestrator) deleteThread(ctx context.Context, threadID string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := o.backend.DeleteThread(cctx, threadID); err != nil {
		return transport("deleting thread", err)
	}
	o.logger.Debug("thread deleted", "thread", threadID)
	return nil
}

func (o *Orchestrator) reviewWithCompletion(ctx context.Context, model, prompt string, emit FragmentFunc) (string, error) {
	if !supportsStreaming(emit) {
		text, err := o.backend.Complete(ctx, model, prompt)
		if err != nil {
			return "", transport("creating completion", err)
		}
		return text, nil
	}

	stream, err := o.backend.StreamCompletion(ctx, model, prompt)
	if err != nil {
		return "", transport("creating completion", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		emit(chunk)
	}
	if err := stream.Err(); err != nil {
		return "", transport("reading completion", err)
	}
	return sb.String(), nil
}
