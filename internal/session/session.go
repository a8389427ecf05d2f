// Package session owns the single active report and chart. Every payload
// supersedes the previous view atomically; readers only ever see complete
// views.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/comtesta/internal/inbound"
	"github.com/hyperifyio/comtesta/internal/indicators"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/render"
	"github.com/hyperifyio/comtesta/internal/report"
	"github.com/hyperifyio/comtesta/internal/store"
)

// ErrClosed is returned once Reset has torn the session down.
var ErrClosed = errors.New("session: closed")

// View is the published dashboard state.
type View = render.View

// Session applies payloads to a Report/Chart pair. It implements
// inbound.Handler; callers that need arrival ordering across transports put an
// inbound.Dispatcher in front of it.
type Session struct {
	Assembler *report.Assembler
	Renderer  radar.Renderer
	Radar     radar.Config
	// Store persists the last accepted payload. Payloads replayed from the
	// store are not saved again.
	Store store.Store

	mu       sync.RWMutex
	view     View
	version  uint64
	closed   bool
	watchers map[chan uint64]struct{}

	// persistMu orders Save against the Clear done by Reset.
	persistMu sync.Mutex
}

// New returns a Session that renders SVG charts with the default layout.
func New(a *report.Assembler, st store.Store) *Session {
	return &Session{Assembler: a, Renderer: radar.SVGRenderer{}, Radar: radar.DefaultConfig(), Store: st}
}

// Handle parses p and, on success, replaces the current view. On a hard
// parse failure the previous view is torn down and nothing new is published.
func (s *Session) Handle(ctx context.Context, p inbound.Payload) error {
	a := s.Assembler
	if a == nil {
		a = &report.Assembler{}
	}
	r, err := a.Parse(p.Text)
	if err != nil {
		log.Warn().Err(err).Str("source", string(p.Source)).Int("bytes", len(p.Text)).Msg("report rejected")
		if terr := s.teardown(); terr != nil {
			return terr
		}
		return err
	}
	logTrace(r, p.Source)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_ = s.view.Chart.Dispose()
	chart, chartErr := s.renderChart(r)
	s.view = View{Report: r, Chart: chart, ChartErr: chartErr, Source: p.Source, ReceivedAt: p.ReceivedAt}
	s.publishLocked()
	s.mu.Unlock()

	if chartErr != nil {
		log.Warn().Err(chartErr).Str("id", r.ID).Msg("chart not rendered")
	}
	log.Info().
		Str("id", r.ID).
		Str("source", string(p.Source)).
		Str("strategy", string(r.MapStrategy)).
		Int("items", len(r.MapItems)).
		Ints("missing", r.Missing).
		Msg("report published")

	if s.Store != nil && p.Source != inbound.SourceSaved {
		s.persist(ctx, store.Entry{Payload: p.Text, Timestamp: p.ReceivedAt})
	}
	return nil
}

// persist saves e unless Reset has already run. Reset waits for a save in
// flight before clearing, so a reset is never undone by a late write.
func (s *Session) persist(ctx context.Context, e store.Entry) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.Closed() {
		log.Debug().Msg("session closed, payload not persisted")
		return
	}
	if err := s.Store.Save(ctx, e); err != nil {
		log.Warn().Err(err).Msg("persist payload")
	}
}

// OnPayload implements inbound.Handler.
func (s *Session) OnPayload(ctx context.Context, p inbound.Payload) error {
	return s.Handle(ctx, p)
}

func (s *Session) renderChart(r *report.Report) (*radar.Chart, error) {
	if !r.Chartable() {
		return nil, nil
	}
	g, err := radar.Layout(r.MapItems, s.Radar)
	if err != nil {
		return nil, err
	}
	rr := s.Renderer
	if rr == nil {
		rr = radar.SVGRenderer{}
	}
	return rr.Render(g)
}

func (s *Session) teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.view.Empty() {
		return nil
	}
	_ = s.view.Chart.Dispose()
	s.view = View{}
	s.publishLocked()
	return nil
}

func (s *Session) publishLocked() {
	s.version++
	for ch := range s.watchers {
		select {
		case ch <- s.version:
		default:
			// Watchers only need the latest version; drop the stale one.
			select {
			case <-ch:
			default:
			}
			ch <- s.version
		}
	}
}

// Current returns a copy of the published view. The chart is cloned, so a
// later payload disposing the session's chart does not affect the copy.
func (s *Session) Current() (View, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Report = v.Report.Clone()
	v.Chart = v.Chart.Clone()
	return v, s.version
}

// Version is incremented on every published change.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Present renders the current view as an HTML fragment.
func (s *Session) Present() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return render.Fragment(s.view)
}

// ChartBytes renders the current report with rr, independently of the
// session's own chart. It returns radar.ErrInsufficientAxes when there is
// nothing to draw.
func (s *Session) ChartBytes(rr radar.Renderer) ([]byte, error) {
	v, _ := s.Current()
	if v.Empty() || !v.Report.Chartable() {
		return nil, radar.ErrInsufficientAxes
	}
	g, err := radar.Layout(v.Report.MapItems, s.Radar)
	if err != nil {
		return nil, err
	}
	c, err := rr.Render(g)
	if err != nil {
		return nil, err
	}
	defer c.Dispose()
	return c.Bytes()
}

// Watch returns a channel receiving the session version after each change,
// and a cancel func. Slow readers only see the latest version.
func (s *Session) Watch() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	s.mu.Lock()
	if s.watchers == nil {
		s.watchers = map[chan uint64]struct{}{}
	}
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Reset disposes the chart, drops the report, clears the store and closes
// the session. Later calls to Handle return ErrClosed.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_ = s.view.Chart.Dispose()
	s.view = View{}
	s.closed = true
	s.version++
	for ch := range s.watchers {
		select {
		case ch <- s.version:
		default:
		}
		close(ch)
	}
	s.watchers = nil
	s.mu.Unlock()

	log.Info().Msg("session reset")
	if s.Store != nil {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if err := s.Store.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Closed reports whether Reset has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func logTrace(r *report.Report, src inbound.Source) {
	ev := log.Debug()
	if !ev.Enabled() {
		return
	}
	for _, e := range r.Trace {
		d := log.Debug().Str("tier", string(e.Tier)).Str("kind", string(e.Kind)).Int("line", e.Line)
		if e.Text != "" {
			d = d.Str("text", e.Text)
		}
		if e.Err != nil {
			d = d.Err(e.Err)
		}
		d.Msg("map trace")
	}
	ev.Str("id", r.ID).
		Str("source", string(src)).
		Str("sections", string(r.SectionStrategy)).
		Str("map", string(r.MapStrategy)).
		Int("events", len(r.Trace)).
		Int("invalid", r.Trace.Count(indicators.EventInvalidScore)).
		Msg("report parsed")
}
