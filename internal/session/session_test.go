package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/loupe/internal/cache"
	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/providers"
	"github.com/dshills/loupe/internal/providers/providertest"
	"github.com/dshills/loupe/internal/redact"
	"github.com/dshills/loupe/internal/review"
)

// factoryFor returns a factory that hands out b and records the key it was
// built with. Keys starting with "bad" get a backend with no models.
func factoryFor(b *providertest.Backend, built *[]config.Settings) BackendFactory {
	var mu sync.Mutex
	return func(s config.Settings) (providers.Backend, error) {
		mu.Lock()
		*built = append(*built, s)
		mu.Unlock()
		if s.APIKey == "" {
			return nil, errors.New("missing API key")
		}
		if strings.HasPrefix(s.APIKey, "bad") {
			return &providertest.Backend{}, nil
		}
		return b, nil
	}
}

func newSession(t *testing.T, b *providertest.Backend, opts Options) (*Session, *[]config.Settings) {
	t.Helper()
	var built []config.Settings
	if opts.Store == nil {
		opts.Store = config.NewStore(config.Settings{APIKey: "sk-good", AssistantID: "asst_1", Model: "gpt-4o-mini"})
	}
	opts.Factory = factoryFor(b, &built)
	return New(opts), &built
}

func TestSource_Text(t *testing.T) {
	assert.Equal(t, "sel", Source{Document: "doc", Selection: "sel"}.Text())
	assert.Equal(t, "doc", Source{Document: "doc"}.Text())
	assert.False(t, Source{Document: "doc"}.HasSelection())
}

func TestReview_UsesSelectionAndRoutes(t *testing.T) {
	b := &providertest.Backend{Reply: "Looks fine."}
	s, _ := newSession(t, b, Options{})

	res := s.Review(context.Background(), Source{FileName: "a.py", Document: "whole file", Selection: "def f(): pass"}, "", nil)

	require.NoError(t, res.Err)
	assert.Equal(t, "Looks fine.", res.Text)
	assert.Equal(t, review.Selector{Kind: review.KindAssistant, Name: "asst_1"}, res.Selector)
	assert.Equal(t, []string{"Please review this code:\n\ndef f(): pass"}, b.Prompts())
	created, deleted := b.Threads()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, deleted)

	res = s.Review(context.Background(), Source{Document: "x=1"}, "Check for bugs", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, review.KindModel, res.Selector.Kind)
	assert.Equal(t, "Check for bugs \n\n Code: \n x=1", b.Prompts()[1])
	created, _ = b.Threads()
	assert.Equal(t, 1, created, "completion path must not create a thread")
}

func TestReview_Streams(t *testing.T) {
	b := &providertest.Backend{Reply: "streamed"}
	s, _ := newSession(t, b, Options{})

	var frags []string
	res := s.Review(context.Background(), Source{Document: "x"}, "", func(f string) { frags = append(frags, f) })

	require.NoError(t, res.Err)
	assert.True(t, res.Streamed)
	assert.Equal(t, []string{"streamed"}, frags)
}

func TestReview_RedactsBeforeSending(t *testing.T) {
	b := &providertest.Backend{Reply: "ok"}
	s, _ := newSession(t, b, Options{Redact: redact.Policy{Secrets: true}})

	res := s.Review(context.Background(), Source{FileName: "main.go", Document: `k := "sk-abcdefghijklmnopqrstuvwxyz"`}, "", nil)

	require.NoError(t, res.Err)
	require.Len(t, b.Prompts(), 1)
	assert.NotContains(t, b.Prompts()[0], "sk-abcdefghij")
	assert.Contains(t, b.Prompts()[0], redact.Placeholder)
}

func TestReview_BlockedPathSendsNothing(t *testing.T) {
	b := &providertest.Backend{Reply: "ok"}
	s, built := newSession(t, b, Options{Redact: redact.Policy{Paths: []string{"**/.env", "**/*secrets*"}}})

	for _, name := range []string{"prod/.env", "app_secrets.go"} {
		var frags []string
		res := s.Review(context.Background(), Source{FileName: name, Document: "TOKEN=abc"}, "", func(f string) { frags = append(frags, f) })

		assert.False(t, res.OK(), name)
		assert.ErrorIs(t, res.Err, ErrBlockedPath, name)
		assert.Equal(t, "Error: "+ErrBlockedPath.Error(), res.Text)
		assert.True(t, res.Streamed)
		assert.Empty(t, frags)
	}
	assert.Empty(t, b.Prompts())
	assert.Empty(t, *built, "no backend should be built for a blocked file")
	created, deleted := b.Threads()
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, deleted)
}

func TestReview_ReadsSettingsAtCallTime(t *testing.T) {
	b := &providertest.Backend{Reply: "ok"}
	s, built := newSession(t, b, Options{})

	s.Review(context.Background(), Source{Document: "x"}, "", nil)
	require.NoError(t, s.SetModel("gpt-4o"))
	s.Review(context.Background(), Source{Document: "x"}, "Explain", nil)

	require.Len(t, *built, 2)
	assert.Equal(t, "gpt-4o-mini", (*built)[0].Model)
	assert.Equal(t, "gpt-4o", (*built)[1].Model)
}

func TestReview_BackendUnavailable(t *testing.T) {
	b := &providertest.Backend{}
	s, _ := newSession(t, b, Options{Store: config.NewStore(config.Settings{AssistantID: "asst_1"})})

	res := s.Review(context.Background(), Source{Document: "x"}, "", nil)

	require.Error(t, res.Err)
	assert.Equal(t, "Error: missing API key", res.Text)
}

func TestReview_Cache(t *testing.T) {
	c, err := cache.New(true, t.TempDir(), 0)
	require.NoError(t, err)
	b := &providertest.Backend{Reply: "cached review"}
	s, _ := newSession(t, b, Options{Cache: c})

	first := s.Review(context.Background(), Source{Document: "x"}, "", nil)
	require.NoError(t, first.Err)

	var frags []string
	second := s.Review(context.Background(), Source{Document: "x"}, "", func(f string) { frags = append(frags, f) })
	require.NoError(t, second.Err)

	assert.Equal(t, "cached review", second.Text)
	assert.Equal(t, []string{"cached review"}, frags)
	created, _ := b.Threads()
	assert.Equal(t, 1, created, "second review should be served from cache")

	s.Review(context.Background(), Source{Document: "y"}, "", nil)
	created, _ = b.Threads()
	assert.Equal(t, 2, created, "different source must miss")
}

func TestSetAPIKey(t *testing.T) {
	b := &providertest.Backend{Models: []string{"gpt-4o"}}
	s, built := newSession(t, b, Options{})

	err := s.SetAPIKey(context.Background(), "bad-key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	assert.Equal(t, "sk-good", s.Settings().APIKey, "rejected key must not be stored")
	assert.Equal(t, "bad-key", (*built)[len(*built)-1].APIKey, "validation must use the candidate key")

	assert.ErrorIs(t, s.SetAPIKey(context.Background(), "  "), ErrEmptyValue)

	require.NoError(t, s.SetAPIKey(context.Background(), "sk-new"))
	assert.Equal(t, "sk-new", s.Settings().APIKey)
}

func TestSetAPIKey_EmptyModelList(t *testing.T) {
	b := &providertest.Backend{}
	s, _ := newSession(t, b, Options{})
	assert.ErrorIs(t, s.SetAPIKey(context.Background(), "sk-other"), ErrInvalidAPIKey)
}

func TestSetAssistantID(t *testing.T) {
	b := &providertest.Backend{Assistants: map[string]bool{"asst_new": true}}
	s, _ := newSession(t, b, Options{})

	assert.ErrorIs(t, s.SetAssistantID(context.Background(), ""), ErrEmptyValue)
	assert.ErrorIs(t, s.SetAssistantID(context.Background(), "asst_missing"), ErrInvalidAssistant)
	assert.Equal(t, "asst_1", s.Settings().AssistantID)

	require.NoError(t, s.SetAssistantID(context.Background(), "asst_new"))
	assert.Equal(t, "asst_new", s.Settings().AssistantID)
}

func TestSetOrganizationAndModel(t *testing.T) {
	s, _ := newSession(t, &providertest.Backend{}, Options{})

	s.SetOrganization("org-1")
	assert.Equal(t, "org-1", s.Settings().Organization)
	s.SetOrganization("")
	assert.Empty(t, s.Settings().Organization)

	assert.ErrorIs(t, s.SetModel(""), ErrEmptyValue)
	require.NoError(t, s.SetModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", s.Settings().Model)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "sk-x"
	cfg.Routing.WithInstruction = "assistant"

	opts, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, review.KindAssistant, opts.Policy.WithInstruction)
	assert.Equal(t, review.KindAssistant, opts.Policy.WithoutInstruction)
	assert.Equal(t, "sk-x", opts.Store.Current().APIKey)
	assert.True(t, opts.Redact.Secrets)
	assert.False(t, opts.Cache.Enabled())

	cfg.Routing.WithoutInstruction = "thread"
	_, err = FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestModels(t *testing.T) {
	b := &providertest.Backend{Models: []string{"gpt-4o", "gpt-4o-mini"}}
	s, _ := newSession(t, b, Options{})

	models, err := s.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)

	b.FailOn = map[string]error{"ListModels": errors.New("boom")}
	_, err = s.Models(context.Background())
	assert.ErrorContains(t, err, "listing models: boom")
}
