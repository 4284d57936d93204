package config

import "sync/atomic"

// Settings is the part of the configuration a review reads at call time.
type Settings struct {
	APIKey       string `json:"api_key,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Organization string `json:"organization,omitempty"`
	Project      string `json:"project,omitempty"`
	AssistantID  string `json:"assistant_id,omitempty"`
	Model        string `json:"model,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
}

// Settings extracts the live settings from a loaded config.
func (c Config) Settings() Settings {
	return Settings{
		APIKey:       c.APIKey,
		Provider:     c.Provider,
		Organization: c.Organization,
		Project:      c.Project,
		AssistantID:  c.AssistantID,
		Model:        c.Model,
		BaseURL:      c.BaseURL,
	}
}

// Redacted returns a copy safe to show to a user.
func (s Settings) Redacted() Settings {
	if s.APIKey != "" {
		s.APIKey = maskKey(s.APIKey)
	}
	return s
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return "****"
	}
	return k[:3] + "..." + k[len(k)-4:]
}

// Store holds the process-wide settings. It is safe for concurrent use.
type Store struct {
	cur atomic.Pointer[Settings]
}

// NewStore creates a store holding s.
func NewStore(s Settings) *Store {
	st := &Store{}
	st.cur.Store(&s)
	return st
}

// Current returns a copy of the settings as of this call.
func (s *Store) Current() Settings {
	return *s.cur.Load()
}

// Update applies fn to a copy of the current settings and publishes the
// result. Concurrent updates are applied one after another; the last one
// to publish wins for any field both touch. fn may run more than once.
func (s *Store) Update(fn func(*Settings)) Settings {
	for {
		old := s.cur.Load()
		next := *old
		fn(&next)
		if s.cur.CompareAndSwap(old, &next) {
			return next
		}
	}
}
