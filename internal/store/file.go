package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes the entry as JSON to Path. Writes go through a temp file
// and rename so readers never see a torn file.
type FileStore struct {
	Path string
	// StrictPerms, when true, enforces 0700 on the directory and 0600 on the
	// file.
	StrictPerms bool
}

func (s *FileStore) ensureDir() error {
	if s == nil || s.Path == "" {
		return errors.New("store path not configured")
	}
	perm := os.FileMode(0o755)
	if s.StrictPerms {
		perm = 0o700
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if s.StrictPerms {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, e Entry) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if s.StrictPerms {
		mode = 0o600
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s *FileStore) Load(_ context.Context) (Entry, error) {
	var e Entry
	if s == nil || s.Path == "" {
		return e, errors.New("store path not configured")
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e, ErrNotFound
		}
		return e, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if e.Payload == "" {
		return e, ErrNotFound
	}
	return e, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if s == nil || s.Path == "" {
		return nil
	}
	for _, p := range []string{s.Path, s.Path + ".tmp"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
