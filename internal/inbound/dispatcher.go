package inbound

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDispatcherClosed is returned by OnPayload after Run has returned.
var ErrDispatcherClosed = errors.New("inbound: dispatcher closed")

// Dispatcher serializes payloads from any number of transports onto one
// Handler. Payloads are applied strictly in arrival order, one at a time, on
// the goroutine running Run.
type Dispatcher struct {
	next  Handler
	queue chan job

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type job struct {
	ctx    context.Context
	p      Payload
	result chan error
}

// NewDispatcher returns a Dispatcher with room for buffer queued payloads.
func NewDispatcher(next Handler, buffer int) *Dispatcher {
	if buffer < 0 {
		buffer = 0
	}
	return &Dispatcher{next: next, queue: make(chan job, buffer), done: make(chan struct{})}
}

// OnPayload enqueues p and waits until the handler has processed it, so a
// transport sees the handler's error.
func (d *Dispatcher) OnPayload(ctx context.Context, p Payload) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	j := job{ctx: ctx, p: p, result: make(chan error, 1)}
	select {
	case d.queue <- j:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	case <-d.done:
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued payloads until ctx is done. Payloads still queued at
// that point are rejected with ErrDispatcherClosed.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-d.queue:
			err := d.next.OnPayload(j.ctx, j.p)
			if err != nil {
				log.Debug().Err(err).Str("source", string(j.p.Source)).Msg("payload rejected")
			}
			j.result <- err
		}
	}
}

func (d *Dispatcher) shutdown() {
	close(d.done)
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	for {
		select {
		case j := <-d.queue:
			j.result <- ErrDispatcherClosed
		default:
			return
		}
	}
}
