package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// OpenAI implements Backend on top of the official OpenAI SDK. It speaks the
// Assistants (threads/runs) and Chat Completions APIs.
type OpenAI struct {
	client openai.Client
	name   string
}

// NewOpenAI creates a new OpenAI backend.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, &authError{message: "no API key configured (set OPENAI_API_KEY)"}
	}
	return newOpenAI(opts, &http.Client{Transport: transport}), nil
}

// transport is shared by every backend so connections are reused across
// reviews. Only the wait for response headers is bounded; a streamed run
// may take as long as it needs.
var transport = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 120 * time.Second
	return t
}()

func newOpenAI(opts Options, hc *http.Client) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(hc),
		// A single failure ends the review; nothing is retried.
		option.WithMaxRetries(0),
	}
	if opts.Organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(opts.Organization))
	}
	if opts.Project != "" {
		reqOpts = append(reqOpts, option.WithProject(opts.Project))
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	return &OpenAI{client: openai.NewClient(reqOpts...), name: "openai"}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) CreateThread(ctx context.Context) (string, error) {
	thread, err := o.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", classify(err)
	}
	return thread.ID, nil
}

func (o *OpenAI) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := o.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		return classify(err)
	}
	return nil
}

func (o *OpenAI) AddMessage(ctx context.Context, threadID, content string) error {
	_, err := o.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (o *OpenAI) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := o.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", classify(err)
	}
	return run.ID, nil
}

func (o *OpenAI) StreamRun(ctx context.Context, threadID, assistantID string) (Stream[Event], error) {
	stream := o.client.Beta.Threads.Runs.NewStreaming(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err := stream.Err(); err != nil {
		return nil, classify(err)
	}
	return &runEventStream{stream: stream}, nil
}

func (o *OpenAI) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := o.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, classify(err)
	}
	return mapRun(run.ID, string(run.Status), run.LastError.Message), nil
}

// ListMessages returns the thread's messages oldest first.
func (o *OpenAI) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	page, err := o.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
	})
	if err != nil {
		return nil, classify(err)
	}
	return lo.Map(page.Data, func(m openai.Message, _ int) Message {
		return Message{
			Role: string(m.Role),
			Text: lo.FilterMap(m.Content, func(part openai.MessageContentUnion, _ int) (string, bool) {
				return part.Text.Value, part.Type == "text"
			}),
		}
	}), nil
}

func (o *OpenAI) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, completionParams(model, prompt))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) StreamCompletion(ctx context.Context, model, prompt string) (Stream[string], error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, completionParams(model, prompt))
	if err := stream.Err(); err != nil {
		return nil, classify(err)
	}
	return &chunkStream{stream: stream}, nil
}

func (o *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	page, err := o.client.Models.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return lo.Map(page.Data, func(m openai.Model, _ int) string { return m.ID }), nil
}

func (o *OpenAI) GetAssistant(ctx context.Context, assistantID string) (string, error) {
	a, err := o.client.Beta.Assistants.Get(ctx, assistantID)
	if err != nil {
		return "", classify(err)
	}
	return a.ID, nil
}

func completionParams(model, prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
}

// mapRun folds the server's run statuses into the three states a poller
// acts on. Terminal statuses other than "failed" are reported as failures.
func mapRun(id, status, lastError string) Run {
	run := Run{ID: id, Raw: status, LastError: lastError}
	switch status {
	case "queued", "in_progress", "cancelling":
		run.Status = StatusPending
	case "completed":
		run.Status = StatusCompleted
	case "failed":
		run.Status = StatusFailed
	case "cancelled", "expired", "incomplete":
		run.Status = StatusFailed
		if run.LastError == "" {
			run.LastError = "run " + status
		}
	default:
		run.Status = StatusUnknown
	}
	return run
}

// runEventStream adapts the SDK's assistant event stream to Stream[Event].
type runEventStream struct {
	stream *ssestream.Stream[openai.AssistantStreamEventUnion]
	cur    Event
}

func (s *runEventStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	ev := s.stream.Current()
	s.cur = parseEvent(ev.Event, ev.RawJSON())
	return true
}

func (s *runEventStream) Current() Event { return s.cur }
func (s *runEventStream) Err() error     { return classify(s.stream.Err()) }
func (s *runEventStream) Close() error   { return s.stream.Close() }

// parseEvent reads the parts of an assistant stream event the orchestrator
// needs from its raw JSON form ({"event": ..., "data": ...}).
func parseEvent(name, raw string) Event {
	ev := Event{Name: name}
	switch name {
	case "thread.message.delta":
		ev.Kind = EventMessageDelta
		ev.Delta = gjson.Get(raw, "data.delta.content.0.text.value").String()
	case "thread.run.completed":
		ev.Kind = EventRunCompleted
	case "thread.run.failed":
		ev.Kind = EventRunFailed
		ev.Error = gjson.Get(raw, "data.last_error.message").String()
	case "thread.run.cancelled", "thread.run.expired", "thread.run.incomplete":
		ev.Kind = EventRunFailed
		ev.Error = gjson.Get(raw, "data.last_error.message").String()
		if ev.Error == "" {
			ev.Error = "run " + strings.TrimPrefix(name, "thread.run.")
		}
	}
	return ev
}

// chunkStream adapts a chat completion chunk stream to Stream[string].
type chunkStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	cur    string
}

func (s *chunkStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		s.cur = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *chunkStream) Current() string { return s.cur }
func (s *chunkStream) Err() error      { return classify(s.stream.Err()) }
func (s *chunkStream) Close() error    { return s.stream.Close() }
