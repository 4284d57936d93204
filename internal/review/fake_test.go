package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/loupe/internal/providers"
)

// sliceStream replays a fixed list of values, then reports err.
type sliceStream[T any] struct {
	items  []T
	pos    int
	err    error
	closed bool
}

func (s *sliceStream[T]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream[T]) Current() T   { return s.items[s.pos-1] }
func (s *sliceStream[T]) Err() error   { return s.err }
func (s *sliceStream[T]) Close() error { s.closed = true; return nil }

// fakeBackend is a scripted in-memory Backend that records every call.
type fakeBackend struct {
	mu sync.Mutex

	// scripted responses
	runs        []providers.Run
	events      []providers.Event
	eventsErr   error
	messages    []providers.Message
	completion  string
	chunks      []string
	chunksErr   error
	models      []string
	assistants  map[string]bool
	failOn      map[string]error
	nextThread  int
	eventStream *sliceStream[providers.Event]
	chunkStream *sliceStream[string]

	// recorded calls
	created     []string
	deleted     []string
	deleteCtxOK []bool
	prompts     []string
	runStarts   int
	streamRuns  int
	statusCalls int
	listCalls   int
	usedModels  []string
	completions []string
	streamed    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		assistants: map[string]bool{},
		failOn:     map[string]error{},
	}
}

func (f *fakeBackend) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateThread"); err != nil {
		return "", err
	}
	f.nextThread++
	id := fmt.Sprintf("thread_%d", f.nextThread)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeBackend) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, threadID)
	f.deleteCtxOK = append(f.deleteCtxOK, ctx.Err() == nil)
	return f.fail("DeleteThread")
}

func (f *fakeBackend) AddMessage(ctx context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddMessage"); err != nil {
		return err
	}
	f.prompts = append(f.prompts, content)
	return nil
}

func (f *fakeBackend) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("StartRun"); err != nil {
		return "", err
	}
	f.runStarts++
	return "run_1", nil
}

func (f *fakeBackend) StreamRun(ctx context.Context, threadID, assistantID string) (providers.Stream[providers.Event], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("StreamRun"); err != nil {
		return nil, err
	}
	f.streamRuns++
	f.eventStream = &sliceStream[providers.Event]{items: f.events, err: f.eventsErr}
	return f.eventStream, nil
}

func (f *fakeBackend) GetRun(ctx context.Context, threadID, runID string) (providers.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetRun"); err != nil {
		return providers.Run{}, err
	}
	if f.statusCalls >= len(f.runs) {
		return providers.Run{}, fmt.Errorf("unscripted status check %d", f.statusCalls+1)
	}
	run := f.runs[f.statusCalls]
	f.statusCalls++
	return run, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, threadID string) ([]providers.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListMessages"); err != nil {
		return nil, err
	}
	f.listCalls++
	return f.messages, nil
}

func (f *fakeBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Complete"); err != nil {
		return "", err
	}
	f.usedModels = append(f.usedModels, model)
	f.completions = append(f.completions, prompt)
	return f.completion, nil
}

func (f *fakeBackend) StreamCompletion(ctx context.Context, model, prompt string) (providers.Stream[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("StreamCompletion"); err != nil {
		return nil, err
	}
	f.usedModels = append(f.usedModels, model)
	f.streamed = append(f.streamed, prompt)
	f.chunkStream = &sliceStream[string]{items: f.chunks, err: f.chunksErr}
	return f.chunkStream, nil
}

func (f *fakeBackend) ListModels(ctx context.Context) ([]string, error) {
	if err := f.fail("ListModels"); err != nil {
		return nil, err
	}
	return f.models, nil
}

func (f *fakeBackend) GetAssistant(ctx context.Context, assistantID string) (string, error) {
	if err := f.fail("GetAssistant"); err != nil {
		return "", err
	}
	if !f.assistants[assistantID] {
		return "", fmt.Errorf("no assistant found with id %q", assistantID)
	}
	return assistantID, nil
}

// recordingSleeper replaces the poll wait and records each requested interval.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func pending() providers.Run   { return providers.Run{ID: "run_1", Status: providers.StatusPending, Raw: "in_progress"} }
func completed() providers.Run { return providers.Run{ID: "run_1", Status: providers.StatusCompleted, Raw: "completed"} }

var _ providers.Backend = (*fakeBackend)(nil)
