// Package store persists the last received payload so a restarted dashboard
// can replay it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by Load when nothing has been saved.
var ErrNotFound = errors.New("store: no saved payload")

// Entry is the persisted key/value pair: the last payload and when it arrived.
type Entry struct {
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Store holds at most one Entry.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context) (Entry, error)
	Clear(ctx context.Context) error
	Close() error
}

// Keys derives the persisted key names from a namespace.
func Keys(namespace string) (response, timestamp string) {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = "comtesta"
	}
	return ns + "_latest_response", ns + "_latest_timestamp"
}

// Open returns the backend named by driver: "file", "sqlite" or "memory".
func Open(driver, path, namespace string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "file":
		return &FileStore{Path: path}, nil
	case "sqlite":
		return OpenSQLite(path, namespace)
	case "memory", "none":
		return &MemoryStore{}, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// MemoryStore keeps the entry in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	entry *Entry
}

func (m *MemoryStore) Save(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = &e
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return Entry{}, ErrNotFound
	}
	return *m.entry, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }
