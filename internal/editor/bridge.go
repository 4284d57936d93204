package editor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/loupe/internal/session"
)

// maxLine bounds a single request, which carries a whole document.
const maxLine = 8 * 1024 * 1024

// Bridge serves the line-delimited JSON protocol an editor plugin speaks
// over the loupe process's stdin and stdout. Reviews run concurrently; every
// other action is answered inline.
type Bridge struct {
	sess    *session.Session
	version string
	logger  *slog.Logger

	outMu sync.Mutex
	enc   *json.Encoder

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge writing responses to out.
func New(sess *session.Session, out io.Writer, version string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Bridge{
		sess:    sess,
		version: version,
		logger:  logger,
		enc:     enc,
		active:  map[string]context.CancelFunc{},
	}
}

// Serve reads requests from in until EOF or ctx is done, then waits for
// in-flight reviews to finish.
func (b *Bridge) Serve(ctx context.Context, in io.Reader) error {
	defer b.wg.Wait()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		b.handle(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			b.respond(Response{Type: TypeError, Message: "Request too large (max 8MB). Send a smaller selection."})
		}
		return fmt.Errorf("reading editor input: %w", err)
	}
	return nil
}

func (b *Bridge) handle(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		b.logger.Warn("invalid editor request", "error", err)
		b.respond(Response{Type: TypeError, Message: "Invalid JSON"})
		return
	}
	id := idString(req.RequestID)
	b.logger.Debug("editor request", "action", req.Action, "request_id", id)

	switch req.Action {
	case "ping":
		b.respond(Response{Type: TypeOK, RequestID: id})

	case "version":
		b.respond(Response{Type: TypeVersion, RequestID: id, Version: b.version})

	case "review":
		rctx, key, ok := b.reserve(ctx, id)
		if !ok {
			b.respond(Response{Type: TypeError, RequestID: id, Message: "A review with this request_id is already in progress"})
			return
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.release(key)
			b.review(rctx, id, req)
		}()

	case "cancel":
		if !b.cancel(idString(req.TargetRequestID)) {
			b.respond(Response{Type: TypeError, RequestID: id, Message: "No active review to cancel"})
			return
		}
		b.respond(Response{Type: TypeOK, RequestID: id})

	case "set_api_key":
		err := b.sess.SetAPIKey(ctx, req.Value)
		b.settingsResult(id, err, msgAPIKeyUpdated)

	case "set_assistant_id":
		err := b.sess.SetAssistantID(ctx, req.Value)
		b.settingsResult(id, err, msgAssistantUpdated)

	case "set_organization":
		b.sess.SetOrganization(req.Value)
		b.settingsResult(id, nil, msgOrgUpdated)

	case "set_model":
		err := b.sess.SetModel(req.Value)
		b.settingsResult(id, err, msgModelUpdated)

	case "settings":
		view := b.sess.Settings().Redacted()
		b.respond(Response{Type: TypeSettings, RequestID: id, Settings: &view})

	default:
		b.respond(Response{Type: TypeError, RequestID: id, Message: fmt.Sprintf("Unknown action: %s", req.Action)})
	}
}

// review emits progress, an optional info line, the heading, the review
// fragments and a final done message.
func (b *Bridge) review(ctx context.Context, id string, req Request) {
	src := session.Source{FileName: req.FileName, Document: req.Document, Selection: req.Selection}

	b.respond(Response{Type: TypeProgress, RequestID: id, Message: msgReviewing})
	if src.HasSelection() {
		name := filepath.Base(src.FileName)
		if src.FileName == "" {
			name = "selection"
		}
		b.respond(Response{Type: TypeInfo, RequestID: id, Message: name + " sent for review"})
	}
	b.respond(Response{Type: TypeMarkdown, RequestID: id, Text: reviewHeading})

	stream := req.Stream == nil || *req.Stream
	var emit func(string)
	if stream {
		emit = func(fragment string) {
			b.respond(Response{Type: TypeFragment, RequestID: id, Text: fragment})
		}
	}

	res := b.sess.Review(ctx, src, req.Prompt, emit)
	ok := res.OK()
	if ok && !stream && res.Text != "" {
		b.respond(Response{Type: TypeFragment, RequestID: id, Text: res.Text})
	}
	if !ok {
		b.respond(Response{Type: TypeError, RequestID: id, Message: res.Text})
	}
	b.respond(Response{Type: TypeDone, RequestID: id, OK: &ok, Target: res.Selector.String()})
}

func (b *Bridge) settingsResult(id string, err error, success string) {
	switch {
	case err == nil:
		b.respond(Response{Type: TypeInfo, RequestID: id, Message: success})
	case errors.Is(err, session.ErrInvalidAPIKey), errors.Is(err, session.ErrInvalidAssistant), errors.Is(err, session.ErrEmptyValue):
		b.respond(Response{Type: TypeWarning, RequestID: id, Message: warningMessage(err)})
	default:
		b.respond(Response{Type: TypeError, RequestID: id, Message: "Error: " + err.Error()})
	}
}

func warningMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidAPIKey):
		return "API Key is invalid or an error occurred"
	case errors.Is(err, session.ErrInvalidAssistant):
		return "Assistant ID not updated as invalid ID was provided."
	default:
		return "Value not updated: " + err.Error()
	}
}

// reserve registers a cancellable review. Reviews without an id get a
// private key so they can only be cancelled all at once.
func (b *Bridge) reserve(ctx context.Context, id string) (context.Context, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := id
	if key == "" {
		// NUL keeps the key out of reach of any id a client can send.
		key = "\x00" + uuid.NewString()
	}
	if _, busy := b.active[key]; busy {
		return nil, "", false
	}
	rctx, cancel := context.WithCancel(ctx)
	b.active[key] = cancel
	return rctx, key, true
}

func (b *Bridge) release(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.active[key]; ok {
		cancel()
		delete(b.active, key)
	}
}

// cancel stops the review with the given id, or every review when id is empty.
func (b *Bridge) cancel(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		for _, c := range b.active {
			c()
		}
		return len(b.active) > 0
	}
	c, ok := b.active[id]
	if ok {
		c()
	}
	return ok
}

func (b *Bridge) respond(r Response) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	if err := b.enc.Encode(r); err != nil {
		b.logger.Error("writing editor response", "error", err)
	}
}
