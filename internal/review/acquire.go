package review

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/loupe/internal/providers"
)

// acquirer obtains the review text for a thread that already holds the prompt.
type acquirer interface {
	acquire(ctx context.Context, b providers.Backend, threadID, assistantID string) (string, error)
}

// newAcquirer picks the event-stream strategy when the caller can take
// fragments and the polling strategy otherwise.
func newAcquirer(emit FragmentFunc, interval time.Duration, sleep sleepFunc, logger *slog.Logger) acquirer {
	if supportsStreaming(emit) {
		return &streamAcquirer{emit: emit, logger: logger}
	}
	return &pollAcquirer{interval: interval, sleep: sleep, logger: logger}
}

func supportsStreaming(emit FragmentFunc) bool { return emit != nil }

// streamAcquirer starts a streaming run and forwards message deltas.
type streamAcquirer struct {
	emit   FragmentFunc
	logger *slog.Logger
}

func (a *streamAcquirer) acquire(ctx context.Context, b providers.Backend, threadID, assistantID string) (string, error) {
	stream, err := b.StreamRun(ctx, threadID, assistantID)
	if err != nil {
		return "", transport("starting run", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		ev := stream.Current()
		switch ev.Kind {
		case providers.EventMessageDelta:
			if ev.Delta == "" {
				continue
			}
			sb.WriteString(ev.Delta)
			a.emit(ev.Delta)
		case providers.EventRunCompleted:
			a.logger.Debug("run completed", "thread", threadID)
			return sb.String(), nil
		case providers.EventRunFailed:
			return "", runFailed(ev.Error)
		}
	}
	if err := stream.Err(); err != nil {
		return "", transport("reading run events", err)
	}
	return "", ErrStreamIncomplete
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// pollAcquirer starts a run, checks its status on a fixed interval and
// collects the assistant's messages once it completes.
type pollAcquirer struct {
	interval time.Duration
	sleep    sleepFunc
	logger   *slog.Logger
}

func (a *pollAcquirer) acquire(ctx context.Context, b providers.Backend, threadID, assistantID string) (string, error) {
	runID, err := b.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return "", transport("starting run", err)
	}
	a.logger.Debug("run started", "thread", threadID, "run", runID)

	for checks := 1; ; checks++ {
		run, err := b.GetRun(ctx, threadID, runID)
		if err != nil {
			return "", transport("checking run status", err)
		}
		switch run.Status {
		case providers.StatusCompleted:
			a.logger.Debug("run completed", "thread", threadID, "run", runID, "checks", checks)
			return a.collect(ctx, b, threadID)
		case providers.StatusFailed:
			return "", runFailed(run.LastError)
		case providers.StatusPending:
		default:
			return "", unexpectedStatus(run.Raw)
		}
		if err := a.sleep(ctx, a.interval); err != nil {
			return "", err
		}
	}
}

func (a *pollAcquirer) collect(ctx context.Context, b providers.Backend, threadID string) (string, error) {
	msgs, err := b.ListMessages(ctx, threadID)
	if err != nil {
		return "", transport("listing messages", err)
	}
	var parts []string
	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		parts = append(parts, m.Text...)
	}
	return strings.Join(parts, "\n"), nil
}
