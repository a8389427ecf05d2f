package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/comtesta/internal/inbound"
)

const complete = "[1] Enunciado: A tese.\n" +
	"[2] Premissas:\n- P1\n" +
	"[3] Evidência:\nPoucas fontes.\n" +
	"[4] Inconsistências:\nNenhuma grave.\n" +
	"[5] Mapa:\n- Clareza >> Nota: 4/5\n- Lógica >> Nota: 3/5\n- Evidência >> Nota: 2/5\n" +
	"Pontuação Média do Mapa: 3/5\n" +
	"[6] Síntese:\nCoerência parcial."

var fixedNow = time.Date(2025, 3, 5, 14, 7, 0, 0, time.UTC)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{StoreDriver: "memory", CacheDir: t.TempDir()}
	ApplyDefaults(&cfg)
	return cfg
}

// startApp runs the app's sources and serves its handler until the test ends.
// It returns once the bus listener has announced itself.
func startApp(t *testing.T, cfg Config) (*App, *httptest.Server) {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	a.Now = func() time.Time { return fixedNow }

	ready, unsubscribe := a.Bus().Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	readyType := inbound.Namespace(cfg.Namespace).Ready()
	select {
	case m := <-ready:
		require.Equal(t, readyType, m.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("bus listener never announced ready")
	}
	unsubscribe()

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		require.NoError(t, <-done)
		a.Close()
	})
	return a, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, contentType, body string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestPaste_PublishesReport(t *testing.T) {
	a, srv := startApp(t, testConfig(t))

	resp, _ := do(t, srv, http.MethodGet, "/api/report", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/api/paste", "text/plain; charset=utf-8", complete)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	assert.EqualValues(t, 1, a.Version())

	resp, body = do(t, srv, http.MethodGet, "/api/report", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got reportBody
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "A tese.", got.Report.Statement)
	assert.Len(t, got.Report.MapItems, 3)
	assert.Equal(t, inbound.SourcePaste, got.Source)
	assert.EqualValues(t, 1, got.Version)
	assert.Equal(t, "Relatório colado manualmente • 05/03/2025 14:07", got.Status)

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	resp, _ = do(t, srv, http.MethodGet, "/api/report", "", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-version="1"`)
	assert.Contains(t, body, "A tese.")

	_, body = do(t, srv, http.MethodGet, "/api/report/version", "", "")
	assert.JSONEq(t, `{"version":1}`, body)
}

func TestPaste_RejectsEmptyText(t *testing.T) {
	a, srv := startApp(t, testConfig(t))
	resp, body := do(t, srv, http.MethodPost, "/api/paste", "text/plain", "  \n ")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)
	v, _ := a.Session().Current()
	assert.True(t, v.Empty())
}

func TestMessages_Envelope(t *testing.T) {
	a, srv := startApp(t, testConfig(t))
	env, err := json.Marshal(inbound.Message{Type: "comtesta/response", Payload: complete})
	require.NoError(t, err)
	resp, body := do(t, srv, http.MethodPost, "/api/messages", "application/json", string(env))
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	v, _ := a.Session().Current()
	require.False(t, v.Empty())
	assert.Equal(t, inbound.SourceWindow, v.Source)

	resp, _ = do(t, srv, http.MethodPost, "/api/messages", "application/json", `{"type":"other/response","payload":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChartAndExports(t *testing.T) {
	_, srv := startApp(t, testConfig(t))

	resp, _ := do(t, srv, http.MethodGet, "/api/report/chart.svg", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/paste", "text/plain", complete)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/api/report/chart.svg", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<svg")

	resp, body = do(t, srv, http.MethodGet, "/api/report/chart.png", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, body = do(t, srv, http.MethodGet, "/api/export", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="ComTesta_Dashboard_20250305_1407.html"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "Gerado em 5 de março de 2025 às 14:07")

	resp, body = do(t, srv, http.MethodGet, "/api/export.pdf", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="ComTesta_Dashboard_20250305_1407.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(body, "%PDF"))

	resp, body = do(t, srv, http.MethodGet, "/api/report/fragment", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<article")
}

func TestReset_StartsFreshSession(t *testing.T) {
	a, srv := startApp(t, testConfig(t))
	resp, _ := do(t, srv, http.MethodPost, "/api/paste", "text/plain", complete)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	before := a.Version()

	resp, _ = do(t, srv, http.MethodPost, "/api/reset", "", "", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/api/reset", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Greater(t, a.Version(), before)

	resp, _ = do(t, srv, http.MethodGet, "/api/report", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the fresh session accepts new payloads and versions keep increasing
	resp, _ = do(t, srv, http.MethodPost, "/api/paste", "text/plain", complete)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Greater(t, a.Version(), before+1)
}

func TestMethodsAndCORS(t *testing.T) {
	_, srv := startApp(t, testConfig(t))

	resp, _ := do(t, srv, http.MethodDelete, "/api/report", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodOptions, "/api/openai", "", "", "Origin", "https://comtesta.netlify.app")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://comtesta.netlify.app", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = do(t, srv, http.MethodOptions, "/api/openai", "", "", "Origin", "https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body := do(t, srv, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"agent":false`)
}

func TestAudit_WithoutCredentials(t *testing.T) {
	_, srv := startApp(t, testConfig(t))
	resp, body := do(t, srv, http.MethodPost, "/api/openai", "application/json", `{"message":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "LLM_API_KEY")
}

func stubModel(t *testing.T, content string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ModelsList{Models: []openai.Model{{ID: "stub", Object: "model"}}})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:      "cmpl-1",
			Object:  "chat.completion",
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAudit_BroadcastsResponse(t *testing.T) {
	model := stubModel(t, complete)
	cfg := testConfig(t)
	cfg.LLMBaseURL = model.URL + "/v1"
	cfg.LLMAPIKey = "test-key"
	a, srv := startApp(t, cfg)

	resp, body := do(t, srv, http.MethodPost, "/api/openai", "application/json", `{"message":"Devemos migrar?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var out struct{ Text string }
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, complete, out.Text)

	require.Eventually(t, func() bool {
		v, _ := a.Session().Current()
		return !v.Empty() && v.Source == inbound.SourceAgent
	}, 5*time.Second, 10*time.Millisecond)

	resp, _ = do(t, srv, http.MethodPost, "/api/openai", "application/json", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/api/openai", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReplay_RestoresSavedPayload(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "file"
	cfg.StorePath = t.TempDir() + "/state.json"

	first, srv := startApp(t, cfg)
	resp, _ := do(t, srv, http.MethodPost, "/api/paste", "text/plain", complete)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	v, _ := first.Session().Current()
	require.False(t, v.Empty())

	second, _ := startApp(t, cfg)
	require.Eventually(t, func() bool {
		v, _ := second.Session().Current()
		return !v.Empty() && v.Source == inbound.SourceSaved
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
