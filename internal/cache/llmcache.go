// Package cache keeps model completions on disk so repeated audits of the
// same prompt do not call the model again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one cached completion.
type Entry struct {
	Model   string    `json:"model"`
	Text    string    `json:"text"`
	SavedAt time.Time `json:"savedAt"`
}

// LLMCache stores completions keyed by a digest of model and prompt.
type LLMCache struct {
	Dir string
	// StrictPerms enforces 0700 on the directory and 0600 on files.
	StrictPerms bool
	// MaxAge expires entries on read; zero keeps them forever.
	MaxAge time.Duration
	// MaxEntries bounds the number of files kept after each Save; zero means
	// unbounded. Least recently used entries are evicted first.
	MaxEntries int
}

func (c *LLMCache) ensureDir() error {
	if c == nil || strings.TrimSpace(c.Dir) == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFrom builds a cache key from model and prompt.
func KeyFrom(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the entry for key. Misses, expired and malformed entries all
// report ok=false. A hit refreshes the file's mtime for LRU eviction.
func (c *LLMCache) Get(_ context.Context, key string) (Entry, bool, error) {
	if err := c.ensureDir(); err != nil {
		return Entry{}, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || strings.TrimSpace(e.Text) == "" {
		return Entry{}, false, nil
	}
	if c.MaxAge > 0 && time.Since(e.SavedAt) > c.MaxAge {
		_ = os.Remove(p)
		return Entry{}, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e, true, nil
}

// Save writes e under key and enforces MaxEntries.
func (c *LLMCache) Save(_ context.Context, key string, e Entry) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	if err := os.WriteFile(c.pathFor(key), b, mode); err != nil {
		return err
	}
	if c.MaxEntries > 0 {
		if _, err := EnforceLimits(c.Dir, c.MaxEntries); err != nil {
			return err
		}
	}
	return nil
}
