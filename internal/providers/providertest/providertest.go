// Package providertest provides a scripted in-memory providers.Backend for
// tests of code that sits above the orchestrator.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/loupe/internal/providers"
)

// Backend answers every call from its fields and records what it was asked.
// Assistant runs complete on the first status check.
type Backend struct {
	mu sync.Mutex

	// Reply is the review text for runs and completions.
	Reply string
	// Fragments, when set, is how Reply is streamed. Defaults to one fragment.
	Fragments []string
	// RunError makes every assistant run fail with this message.
	RunError   string
	Models     []string
	Assistants map[string]bool
	// FailOn maps a method name to the error it returns.
	FailOn map[string]error
	// Gate, when non-nil, holds every run and completion until it is closed
	// or the caller's context ends.
	Gate chan struct{}

	prompts []string
	threads int
	deleted int
}

// Prompts returns the prompts sent so far.
func (b *Backend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

// Threads returns how many threads were created and deleted.
func (b *Backend) Threads() (created, deleted int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threads, b.deleted
}

func (b *Backend) fail(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.FailOn[op]
}

func (b *Backend) wait(ctx context.Context) error {
	if b.Gate == nil {
		return nil
	}
	select {
	case <-b.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) fragments() []string {
	if len(b.Fragments) > 0 {
		return b.Fragments
	}
	return []string{b.Reply}
}

func (b *Backend) record(prompt string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, prompt)
}

func (b *Backend) Name() string { return "test" }

func (b *Backend) CreateThread(context.Context) (string, error) {
	if err := b.fail("CreateThread"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threads++
	return fmt.Sprintf("thread_%d", b.threads), nil
}

func (b *Backend) DeleteThread(context.Context, string) error {
	b.mu.Lock()
	b.deleted++
	b.mu.Unlock()
	return b.fail("DeleteThread")
}

func (b *Backend) AddMessage(_ context.Context, _ string, content string) error {
	if err := b.fail("AddMessage"); err != nil {
		return err
	}
	b.record(content)
	return nil
}

func (b *Backend) StartRun(ctx context.Context, _, _ string) (string, error) {
	if err := b.fail("StartRun"); err != nil {
		return "", err
	}
	return "run_1", b.wait(ctx)
}

func (b *Backend) StreamRun(ctx context.Context, _, _ string) (providers.Stream[providers.Event], error) {
	if err := b.fail("StreamRun"); err != nil {
		return nil, err
	}
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	var evs []providers.Event
	if b.RunError != "" {
		evs = append(evs, providers.Event{Kind: providers.EventRunFailed, Name: "thread.run.failed", Error: b.RunError})
	} else {
		for _, f := range b.fragments() {
			evs = append(evs, providers.Event{Kind: providers.EventMessageDelta, Name: "thread.message.delta", Delta: f})
		}
		evs = append(evs, providers.Event{Kind: providers.EventRunCompleted, Name: "thread.run.completed"})
	}
	return &Stream[providers.Event]{Items: evs}, nil
}

func (b *Backend) GetRun(context.Context, string, string) (providers.Run, error) {
	if err := b.fail("GetRun"); err != nil {
		return providers.Run{}, err
	}
	if b.RunError != "" {
		return providers.Run{ID: "run_1", Status: providers.StatusFailed, Raw: "failed", LastError: b.RunError}, nil
	}
	return providers.Run{ID: "run_1", Status: providers.StatusCompleted, Raw: "completed"}, nil
}

func (b *Backend) ListMessages(context.Context, string) ([]providers.Message, error) {
	if err := b.fail("ListMessages"); err != nil {
		return nil, err
	}
	return []providers.Message{{Role: "assistant", Text: []string{b.Reply}}}, nil
}

func (b *Backend) Complete(ctx context.Context, _ string, prompt string) (string, error) {
	if err := b.fail("Complete"); err != nil {
		return "", err
	}
	b.record(prompt)
	if err := b.wait(ctx); err != nil {
		return "", err
	}
	return b.Reply, nil
}

func (b *Backend) StreamCompletion(ctx context.Context, _ string, prompt string) (providers.Stream[string], error) {
	if err := b.fail("StreamCompletion"); err != nil {
		return nil, err
	}
	b.record(prompt)
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	return &Stream[string]{Items: b.fragments()}, nil
}

func (b *Backend) ListModels(context.Context) ([]string, error) {
	if err := b.fail("ListModels"); err != nil {
		return nil, err
	}
	return b.Models, nil
}

func (b *Backend) GetAssistant(_ context.Context, id string) (string, error) {
	if err := b.fail("GetAssistant"); err != nil {
		return "", err
	}
	if !b.Assistants[id] {
		return "", fmt.Errorf("no assistant found with id '%s'", id)
	}
	return id, nil
}

// Stream replays Items and then ends cleanly.
type Stream[T any] struct {
	Items []T
	pos   int
}

func (s *Stream[T]) Next() bool {
	if s.pos >= len(s.Items) {
		return false
	}
	s.pos++
	return true
}

func (s *Stream[T]) Current() T   { return s.Items[s.pos-1] }
func (s *Stream[T]) Err() error   { return nil }
func (s *Stream[T]) Close() error { return nil }

var _ providers.Backend = (*Backend)(nil)
