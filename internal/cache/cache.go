package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// memCapacity bounds the in-memory tier that sits in front of the files.
const memCapacity = 256

// Entry is a cached review.
type Entry struct {
	Key       string    `json:"key"`
	Target    string    `json:"target"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cache is a file-based store of review results with a small in-memory tier
// for long-running hosts. A disabled cache misses on every Get and ignores
// every Put.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	now     func() time.Time
	mem     *ttlcache.Cache[string, Entry]
}

// New creates a new Cache. If dir is empty, uses the default cache directory.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if !enabled {
		return &Cache{now: time.Now}, nil
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	ttl := time.Duration(max(ttlSeconds, 0)) * time.Second
	return &Cache{
		dir:     dir,
		ttl:     ttl,
		enabled: true,
		now:     time.Now,
		mem: ttlcache.New[string, Entry](
			ttlcache.WithTTL[string, Entry](ttl),
			ttlcache.WithCapacity[string, Entry](memCapacity),
			ttlcache.WithDisableTouchOnHit[string, Entry](),
		),
	}, nil
}

// Key builds the lookup key for a review.
func Key(backend, target, prompt string) string {
	h := sha256.New()
	for _, part := range []string{backend, target, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry stored under key. Expired or unreadable entries miss.
func (c *Cache) Get(key string) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}
	if item := c.mem.Get(key); item != nil {
		if entry := item.Value(); !c.expired(entry) {
			return entry, true
		}
		c.mem.Delete(key)
	}
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		return Entry{}, false
	}
	if c.expired(entry) {
		_ = os.Remove(path)
		return Entry{}, false
	}
	c.mem.Set(key, entry, ttlcache.DefaultTTL)
	return entry, true
}

// Put stores a review. The write is atomic so concurrent readers never see
// a partial entry.
func (c *Cache) Put(key, target, text string) error {
	if !c.enabled {
		return nil
	}
	entry := Entry{Key: key, Target: target, Text: text, CreatedAt: c.now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storing cache entry: %w", err)
	}
	c.mem.Set(key, entry, ttlcache.DefaultTTL)
	return nil
}

// Clear removes all cache entries and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	if !c.enabled {
		return 0, nil
	}
	c.mem.DeleteAll()
	return c.sweep(func(string) bool { return true })
}

// Prune removes only the entries whose TTL has passed.
func (c *Cache) Prune() (int, error) {
	if !c.enabled {
		return 0, nil
	}
	c.mem.DeleteExpired()
	return c.sweep(func(path string) bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return true
		}
		return c.expired(entry)
	})
}

// sweep deletes the entry files accepted by drop.
func (c *Cache) sweep(drop func(path string) bool) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		if !drop(path) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats describes the cache contents.
type Stats struct {
	Dir        string `json:"dir"`
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// GetStats returns information about the cache.
func (c *Cache) GetStats() (Stats, error) {
	stats := Stats{Dir: c.dir, Enabled: c.enabled, TTLSeconds: int(c.ttl / time.Second)}
	if !c.enabled {
		return stats, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if c.expired(entry) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool { return c.enabled }

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) entryPath(key string) string {
	// Keys from Key are hex; anything else is hashed to keep paths safe.
	if len(key) != sha256.Size*2 || strings.ContainsAny(key, `/\.`) {
		sum := sha256.Sum256([]byte(key))
		key = hex.EncodeToString(sum[:])
	}
	return filepath.Join(c.dir, key+".json")
}

// DefaultDir returns the platform-appropriate cache directory.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "loupe"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "loupe"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "loupe", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "loupe", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "loupe"), nil
	}
}
