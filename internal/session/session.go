package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/loupe/internal/cache"
	"github.com/dshills/loupe/internal/config"
	"github.com/dshills/loupe/internal/providers"
	"github.com/dshills/loupe/internal/redact"
	"github.com/dshills/loupe/internal/review"
)

var (
	// ErrEmptyValue is returned when a settings update carries no value.
	ErrEmptyValue = errors.New("value must not be empty")
	// ErrInvalidAPIKey is returned when a candidate API key fails validation.
	ErrInvalidAPIKey = errors.New("API key is invalid or an error occurred")
	// ErrInvalidAssistant is returned when a candidate assistant id fails validation.
	ErrInvalidAssistant = errors.New("assistant ID not updated as invalid ID was provided")
	// ErrBlockedPath is returned when the path policy withholds the whole file.
	ErrBlockedPath = errors.New("file is blocked by the privacy path policy; nothing was sent")
)

// Source is what a host hands over for review.
type Source struct {
	FileName  string
	Document  string
	Selection string
}

// HasSelection reports whether a non-empty selection was given.
func (s Source) HasSelection() bool { return s.Selection != "" }

// Text returns the selection when there is one and the whole document otherwise.
func (s Source) Text() string {
	if s.HasSelection() {
		return s.Selection
	}
	return s.Document
}

// BackendFactory builds a backend from a settings snapshot.
type BackendFactory func(config.Settings) (providers.Backend, error)

// DefaultFactory builds the configured provider.
func DefaultFactory(s config.Settings) (providers.Backend, error) {
	return providers.New(s.Provider, providers.Options{
		APIKey:       s.APIKey,
		Organization: s.Organization,
		Project:      s.Project,
		BaseURL:      s.BaseURL,
	})
}

// Options configures a Session.
type Options struct {
	Store        *config.Store
	Factory      BackendFactory
	Policy       review.Policy
	PollInterval time.Duration
	Redact       redact.Policy
	Cache        *cache.Cache
	Logger       *slog.Logger
}

// Session serves reviews and settings updates for one host.
type Session struct {
	store        *config.Store
	factory      BackendFactory
	policy       review.Policy
	pollInterval time.Duration
	redact       redact.Policy
	cache        *cache.Cache
	logger       *slog.Logger
}

// New creates a session. A nil Store starts from empty settings and a nil
// Factory uses DefaultFactory.
func New(opts Options) *Session {
	s := &Session{
		store:        opts.Store,
		factory:      opts.Factory,
		policy:       opts.Policy,
		pollInterval: opts.PollInterval,
		redact:       opts.Redact,
		cache:        opts.Cache,
		logger:       opts.Logger,
	}
	if s.store == nil {
		s.store = config.NewStore(config.Settings{})
	}
	if s.factory == nil {
		s.factory = DefaultFactory
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// FromConfig builds session options from a loaded config.
func FromConfig(cfg config.Config, logger *slog.Logger) (Options, error) {
	with, err := review.ParseKind(cfg.Routing.WithInstruction)
	if err != nil {
		return Options{}, fmt.Errorf("routing.with_instruction: %w", err)
	}
	without, err := review.ParseKind(cfg.Routing.WithoutInstruction)
	if err != nil {
		return Options{}, fmt.Errorf("routing.without_instruction: %w", err)
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Store:        config.NewStore(cfg.Settings()),
		Policy:       review.Policy{WithInstruction: with, WithoutInstruction: without},
		PollInterval: cfg.PollInterval,
		Redact:       redact.Policy{Secrets: cfg.Privacy.RedactSecrets, Paths: cfg.Privacy.RedactPaths},
		Cache:        c,
		Logger:       logger,
	}, nil
}

// Settings returns the current settings.
func (s *Session) Settings() config.Settings { return s.store.Current() }

// Review reviews src. When emit is non-nil the review is streamed through it.
// Failures are reported in the Result.
func (s *Session) Review(ctx context.Context, src Source, instruction string, emit review.FragmentFunc) review.Result {
	settings := s.store.Current()
	streamed := emit != nil

	text, rep := s.redact.Apply(src.Text(), src.FileName)
	if rep.Blocked {
		s.logger.Warn("review refused by path policy", "file", src.FileName)
		return review.Failure(review.Selector{}, streamed, ErrBlockedPath)
	}
	if rep.Changed() {
		s.logger.Info("source redacted", "file", src.FileName, "spans", rep.Total())
	}

	backend, err := s.factory(settings)
	if err != nil {
		return review.Failure(review.Selector{}, streamed, err)
	}
	orch := review.New(backend, review.Options{
		AssistantID:  settings.AssistantID,
		Model:        settings.Model,
		Policy:       s.policy,
		PollInterval: s.pollInterval,
		Logger:       s.logger,
	})
	req := review.Request{Instruction: instruction, SourceText: text}
	sel := orch.Resolve(req)

	key := cache.Key(backend.Name()+"|"+settings.BaseURL, sel.String(), review.BuildPrompt(instruction, text))
	if s.cache != nil {
		if entry, ok := s.cache.Get(key); ok {
			s.logger.Debug("review served from cache", "target", sel.String())
			if streamed {
				emit(entry.Text)
			}
			return review.Result{Text: entry.Text, Selector: sel, Streamed: streamed}
		}
	}

	res := orch.Review(ctx, req, emit)
	if res.OK() && s.cache != nil {
		if err := s.cache.Put(key, sel.String(), res.Text); err != nil {
			s.logger.Warn("caching review failed", "error", err)
		}
	}
	return res
}

// CheckAPIKey reports whether key is accepted by the remote service.
func (s *Session) CheckAPIKey(ctx context.Context, key string) bool {
	candidate := s.store.Current()
	candidate.APIKey = key
	backend, err := s.factory(candidate)
	if err != nil {
		s.logger.Debug("building backend for key check", "error", err)
		return false
	}
	return review.ValidateCredential(ctx, backend)
}

// CheckAssistant reports whether the assistant id exists for the current key.
func (s *Session) CheckAssistant(ctx context.Context, id string) bool {
	backend, err := s.factory(s.store.Current())
	if err != nil {
		s.logger.Debug("building backend for assistant check", "error", err)
		return false
	}
	return review.ValidateAssistant(ctx, backend, id)
}

// Models lists the models visible to the current credentials.
func (s *Session) Models(ctx context.Context) ([]string, error) {
	backend, err := s.factory(s.store.Current())
	if err != nil {
		return nil, err
	}
	models, err := backend.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// SetAPIKey validates key with a backend built from it and stores it.
func (s *Session) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyValue
	}
	if !s.CheckAPIKey(ctx, key) {
		return ErrInvalidAPIKey
	}
	s.store.Update(func(st *config.Settings) { st.APIKey = key })
	s.logger.Info("api key updated")
	return nil
}

// SetAssistantID validates id against the current backend and stores it.
func (s *Session) SetAssistantID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyValue
	}
	if !s.CheckAssistant(ctx, id) {
		return ErrInvalidAssistant
	}
	s.store.Update(func(st *config.Settings) { st.AssistantID = id })
	s.logger.Info("assistant id updated", "assistant", id)
	return nil
}

// SetOrganization replaces the organization. An empty value clears it.
func (s *Session) SetOrganization(org string) {
	org = strings.TrimSpace(org)
	s.store.Update(func(st *config.Settings) { st.Organization = org })
}

// SetModel replaces the model used for stateless reviews.
func (s *Session) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return ErrEmptyValue
	}
	s.store.Update(func(st *config.Settings) { st.Model = model })
	return nil
}
