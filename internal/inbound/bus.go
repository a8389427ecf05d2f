package inbound

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Bus is an in-process broadcast channel. Every subscriber sees every message
// published after it subscribed. Slow subscribers drop messages rather than
// block publishers.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Message
	nextID int
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]chan Message{}}
}

// Subscribe returns a channel of messages and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]chan Message{}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Message, buffer)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers m to all current subscribers and returns how many
// accepted it.
func (b *Bus) Publish(m Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- m:
			n++
		default:
			log.Warn().Str("type", m.Type).Msg("bus subscriber full; message dropped")
		}
	}
	return n
}

// BusSource listens on a Bus for "<ns>/response" messages. After attaching it
// announces "<ns>/ready" so publishers know a dashboard is listening.
type BusSource struct {
	Bus       *Bus
	Namespace Namespace
	// Source labels forwarded payloads; defaults to SourceAgent.
	Source Source
	Now    func() time.Time
}

func (s *BusSource) Run(ctx context.Context, h Handler) error {
	ch, cancel := s.Bus.Subscribe(16)
	defer cancel()
	s.Bus.Publish(Message{Type: s.Namespace.Ready()})
	src := s.Source
	if src == "" {
		src = SourceAgent
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if m.Type != s.Namespace.Response() || strings.TrimSpace(m.Payload) == "" {
				continue
			}
			if err := h.OnPayload(ctx, Payload{Text: m.Payload, Source: src, ReceivedAt: s.now()}); err != nil {
				log.Warn().Err(err).Str("source", string(src)).Msg("bus payload not applied")
			}
		}
	}
}

func (s *BusSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
