package inbound

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/comtesta/internal/extract"
)

// WatchSource delivers the contents of an inbox file whenever it settles
// after a change. The directory is watched so editors that replace the file
// by rename are seen too. Unchanged contents are not redelivered.
type WatchSource struct {
	Path     string
	Debounce time.Duration
	// Tick is the debounce polling interval; defaults to Debounce/5.
	Tick time.Duration
	Now  func() time.Time
}

func (s *WatchSource) Run(ctx context.Context, h Handler) error {
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("inbound: watch path not configured")
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	debounce := s.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	tickEvery := s.Tick
	if tickEvery <= 0 {
		tickEvery = debounce / 5
	}
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	var pending time.Time
	var last [sha256.Size]byte
	log.Info().Str("path", abs).Msg("watching inbox")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("inbox watcher error")
		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}
			b, err := os.ReadFile(abs)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					log.Warn().Err(err).Str("path", abs).Msg("read inbox")
				}
				continue
			}
			sum := sha256.Sum256(b)
			if sum == last || strings.TrimSpace(string(b)) == "" {
				continue
			}
			last = sum
			text := string(b)
			if extract.LooksLikeHTML(text) {
				text = extract.TextFromHTML(text)
			}
			if err := h.OnPayload(ctx, Payload{Text: text, Source: SourceInbox, ReceivedAt: s.now()}); err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("inbox payload not applied")
			}
		}
	}
}

func (s *WatchSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
