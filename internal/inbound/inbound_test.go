package inbound

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/comtesta/internal/store"
)

type recorder struct {
	mu  sync.Mutex
	got []Payload
	err error
}

func (r *recorder) OnPayload(_ context.Context, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
	return r.err
}

func (r *recorder) payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.got...)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "comtesta/response", Namespace("").Response())
	assert.Equal(t, "x/ready", Namespace("x").Ready())
}

func TestDispatcher_PreservesArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	inFlight := 0
	h := HandlerFunc(func(_ context.Context, p Payload) error {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			t.Errorf("concurrent handler invocation")
		}
		order = append(order, p.Text)
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(h, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = d.Run(ctx); close(done) }()

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, d.OnPayload(context.Background(), Payload{Text: s}))
	}
	cancel()
	<-done
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
	assert.ErrorIs(t, d.OnPayload(context.Background(), Payload{Text: "late"}), ErrDispatcherClosed)
}

func TestDispatcher_ReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispatcher(HandlerFunc(func(context.Context, Payload) error { return boom }), 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = d.Run(ctx); close(done) }()
	assert.ErrorIs(t, d.OnPayload(context.Background(), Payload{Text: "x"}), boom)
	cancel()
	<-done
}

func TestBusSource_ForwardsResponsesAndAnnouncesReady(t *testing.T) {
	bus := NewBus()
	watch, stop := bus.Subscribe(8)
	defer stop()

	rec := &recorder{}
	src := &BusSource{Bus: bus, Namespace: "comtesta"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, rec) }()

	select {
	case m := <-watch:
		require.Equal(t, "comtesta/ready", m.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no ready announcement")
	}

	bus.Publish(Message{Type: "other/response", Payload: "ignored"})
	bus.Publish(Message{Type: "comtesta/response", Payload: "  "})
	bus.Publish(Message{Type: "comtesta/response", Payload: "[1] A: um"})

	require.Eventually(t, func() bool { return len(rec.payloads()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	p := rec.payloads()[0]
	assert.Equal(t, "[1] A: um", p.Text)
	assert.Equal(t, SourceAgent, p.Source)
}

func TestReplaySource(t *testing.T) {
	ctx := context.Background()
	st := &store.MemoryStore{}
	rec := &recorder{}
	require.NoError(t, (&ReplaySource{Store: st}).Run(ctx, rec))
	assert.Empty(t, rec.payloads())

	ts := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	require.NoError(t, st.Save(ctx, store.Entry{Payload: "salvo", Timestamp: ts}))
	rec.err = errors.New("parse failed")
	require.NoError(t, (&ReplaySource{Store: st}).Run(ctx, rec))
	got := rec.payloads()
	require.Len(t, got, 1)
	assert.Equal(t, SourceSaved, got[0].Source)
	assert.True(t, got[0].ReceivedAt.Equal(ts))
}

func TestHTTPSource_Envelope(t *testing.T) {
	rec := &recorder{}
	src := &HTTPSource{Handler: rec, Namespace: "comtesta"}

	post := func(body string, hdr map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "http://dash.local/api/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		src.ServeHTTP(w, req)
		return w
	}

	w := post(`{"type":"comtesta/response","payload":"[1] A: um"}`, map[string]string{"Origin": "http://dash.local"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = post(`{"type":"comtesta/response","payload":"x"}`, map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = post(`{"type":"comtesta/response","payload":"x"}`, map[string]string{"Sec-Fetch-Site": "cross-site"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = post(`{"type":"other","payload":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"type":"comtesta/response","payload":"<ul><li>A &gt;&gt; Nota: 4/5</li></ul>"}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	got := rec.payloads()
	require.Len(t, got, 2)
	assert.Equal(t, "[1] A: um", got[0].Text)
	assert.Equal(t, SourceWindow, got[0].Source)
	assert.Equal(t, "- A >> Nota: 4/5", got[1].Text)
}

func TestHTTPSource_RawPasteLimitsAndErrors(t *testing.T) {
	rec := &recorder{err: errors.New("empty input")}
	src := &HTTPSource{Handler: rec, Raw: true, Source: SourcePaste, MaxBytes: 16, Limiter: rate.NewLimiter(rate.Every(time.Hour), 2)}

	req := httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader("texto"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	src.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "empty input")
	assert.Equal(t, SourcePaste, rec.payloads()[0].Source)

	req = httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader(strings.Repeat("x", 64)))
	w = httptest.NewRecorder()
	src.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/paste", strings.NewReader("x"))
	w = httptest.NewRecorder()
	src.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/paste", nil)
	w = httptest.NewRecorder()
	src.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWatchSource_DeliversSettledChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inbox.txt")
	rec := &recorder{}
	src := &WatchSource{Path: path, Debounce: 20 * time.Millisecond, Tick: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, rec) }()

	// Give the watcher time to attach before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[1] A: um"), 0o644))
	require.Eventually(t, func() bool { return len(rec.payloads()) == 1 }, 3*time.Second, 10*time.Millisecond)

	// Rewriting identical content is not redelivered.
	require.NoError(t, os.WriteFile(path, []byte("[1] A: um"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.payloads(), 1)

	require.NoError(t, os.WriteFile(path, []byte("[1] A: dois"), 0o644))
	require.Eventually(t, func() bool { return len(rec.payloads()) == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	got := rec.payloads()
	assert.Equal(t, "[1] A: dois", got[1].Text)
	assert.Equal(t, SourceInbox, got[1].Source)
}
