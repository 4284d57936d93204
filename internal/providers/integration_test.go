//go:build integration

package providers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func skipIfEnvMissing(t *testing.T, envVar string) string {
	t.Helper()
	v := os.Getenv(envVar)
	if v == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
	return v
}

func skipIfOllamaUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:11434/api/tags", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("skipping: ollama not reachable: %v", err)
	}
	resp.Body.Close()
}

func integrationContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func openAIBackend(t *testing.T) Backend {
	t.Helper()
	key := skipIfEnvMissing(t, "OPENAI_API_KEY")
	b, err := New("openai", Options{
		APIKey:       key,
		Organization: os.Getenv("OPENAI_ORG_ID"),
		Project:      os.Getenv("OPENAI_PROJECT_ID"),
	})
	require.NoError(t, err)
	return b
}

const integrationModel = "gpt-4o-mini"

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestIntegration_ListModels(t *testing.T) {
	b := openAIBackend(t)
	models, err := b.ListModels(integrationContext(t))
	require.NoError(t, err)
	require.NotEmpty(t, models)
	t.Logf("models=%d", len(models))
}

func TestIntegration_BadKeyIsAuthError(t *testing.T) {
	skipIfEnvMissing(t, "OPENAI_API_KEY")
	b, err := New("openai", Options{APIKey: "sk-invalid-integration-key"})
	require.NoError(t, err)

	_, err = b.ListModels(integrationContext(t))
	assert.True(t, IsAuthError(err), "ListModels() error = %v, want auth error", err)
}

func TestIntegration_Completion(t *testing.T) {
	b := openAIBackend(t)
	ctx := integrationContext(t)

	text, err := b.Complete(ctx, integrationModel, "Reply with exactly: HELLO INTEGRATION TEST")
	require.NoError(t, err)
	require.NotEmpty(t, text)
	if !strings.Contains(strings.ToUpper(text), "HELLO") {
		t.Logf("warning: response did not contain HELLO: %s", text)
	}
}

func TestIntegration_StreamCompletion(t *testing.T) {
	b := openAIBackend(t)
	stream, err := b.StreamCompletion(integrationContext(t), integrationModel, "Count from one to five in words.")
	require.NoError(t, err)
	defer stream.Close()

	var chunks int
	var sb strings.Builder
	for stream.Next() {
		chunks++
		sb.WriteString(stream.Current())
	}
	require.NoError(t, stream.Err())
	require.Positive(t, sb.Len(), "expected streamed text")
	t.Logf("chunks=%d content_len=%d", chunks, sb.Len())
}

// TestIntegration_AssistantRun drives a full thread lifecycle against a
// real assistant: create, post, stream the run, read back and delete.
func TestIntegration_AssistantRun(t *testing.T) {
	b := openAIBackend(t)
	assistantID := skipIfEnvMissing(t, "OPENAI_ASSISTANT_ID")
	ctx := integrationContext(t)

	_, err := b.GetAssistant(ctx, assistantID)
	require.NoError(t, err)

	threadID, err := b.CreateThread(ctx)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, b.DeleteThread(context.Background(), threadID))
	}()

	require.NoError(t, b.AddMessage(ctx, threadID, "Please review this code:\n\nfunc add(a, b int) int { return a - b }"))

	stream, err := b.StreamRun(ctx, threadID, assistantID)
	require.NoError(t, err)
	defer stream.Close()

	var deltas int
	var terminal EventKind
	for stream.Next() {
		switch ev := stream.Current(); ev.Kind {
		case EventMessageDelta:
			deltas++
		case EventRunCompleted, EventRunFailed:
			terminal = ev.Kind
		}
	}
	require.NoError(t, stream.Err())
	require.Equal(t, EventRunCompleted, terminal)

	msgs, err := b.ListMessages(ctx, threadID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "user", msgs[0].Role, "messages must come back oldest first")
	assert.Equal(t, "assistant", msgs[len(msgs)-1].Role)
	t.Logf("deltas=%d messages=%d", deltas, len(msgs))
}

func TestIntegration_OllamaCompletion(t *testing.T) {
	skipIfOllamaUnavailable(t)
	b, err := New("ollama", Options{})
	require.NoError(t, err)

	text, err := b.Complete(integrationContext(t), "llama3", "Reply with exactly: HELLO")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
