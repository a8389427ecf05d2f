package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/comtesta/internal/agent"
	"github.com/hyperifyio/comtesta/internal/cache"
	"github.com/hyperifyio/comtesta/internal/inbound"
	"github.com/hyperifyio/comtesta/internal/llm"
	"github.com/hyperifyio/comtesta/internal/normalize"
	"github.com/hyperifyio/comtesta/internal/radar"
	"github.com/hyperifyio/comtesta/internal/render"
	"github.com/hyperifyio/comtesta/internal/report"
	"github.com/hyperifyio/comtesta/internal/session"
	"github.com/hyperifyio/comtesta/internal/store"
)

// App wires the dashboard session to its transports, the audit agent and the
// HTTP surface.
type App struct {
	cfg        Config
	store      store.Store
	bus        *inbound.Bus
	assembler  *report.Assembler
	auditor    *agent.Auditor
	intake     *rate.Limiter
	dispatcher *inbound.Dispatcher

	mu    sync.RWMutex
	sess  *session.Session
	epoch uint64

	// Now is overridable for tests.
	Now func() time.Time
}

// New opens the store, prepares the cache and the audit agent and starts an
// empty session. cfg should already have defaults applied.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreDriver, cfg.StorePath, cfg.Namespace)
	if err != nil {
		return nil, err
	}
	if fs, ok := st.(*store.FileStore); ok {
		fs.StrictPerms = cfg.StoreStrictPerms
	}

	a := &App{
		cfg:       cfg,
		store:     st,
		bus:       inbound.NewBus(),
		assembler: &report.Assembler{Normalizer: normalize.New(cfg.Footers...), Strict: cfg.StrictSections},
		intake:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
	a.sess = a.newSession()
	a.dispatcher = inbound.NewDispatcher(inbound.HandlerFunc(a.handlePayload), 8)

	if cfg.LLMAPIKey != "" || cfg.LLMBaseURL != "" {
		a.auditor = NewAuditor(ctx, cfg)
	} else {
		log.Debug().Msg("no LLM credentials; audit endpoint disabled")
	}
	return a, nil
}

// NewAuditor builds the audit agent for cfg, applies the cache invalidation
// settings and runs a best-effort model listing.
func NewAuditor(ctx context.Context, cfg Config) *agent.Auditor {
	provider := llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, newLLMHTTPClient())
	au := &agent.Auditor{
		Client:       provider,
		Model:        cfg.LLMModel,
		SystemPrompt: cfg.SystemPrompt,
	}
	if cfg.LLMRate > 0 {
		au.Limiter = rate.NewLimiter(rate.Limit(cfg.LLMRate), 1)
	}
	if cfg.CacheDir != "" {
		// Apply cache invalidation controls
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err == nil && n > 0 {
				log.Debug().Int("removed", n).Msg("expired cache entries purged")
			}
		}
		au.Cache = &cache.LLMCache{
			Dir:         cfg.CacheDir,
			StrictPerms: cfg.CacheStrictPerms,
			MaxAge:      cfg.CacheMaxAge,
			MaxEntries:  cfg.CacheMaxEntries,
		}
	}

	// Preflight is best-effort; audit requests surface real failures.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := provider.ListModels(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
	case len(models.Models) == 0:
		log.Warn().Msg("LLM returned zero models")
	default:
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	}
	return au
}

func (a *App) newSession() *session.Session {
	return session.New(a.assembler, a.store)
}

// Close releases the store.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}
}

// Session returns the active session.
func (a *App) Session() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

// Bus is the in-process channel that carries "<ns>/response" messages.
func (a *App) Bus() *inbound.Bus { return a.bus }

// Version is monotonic across resets.
func (a *App) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.epoch + a.sess.Version()
}

func (a *App) handlePayload(ctx context.Context, p inbound.Payload) error {
	return a.Session().Handle(ctx, p)
}

// Reset tears the active session down, clears the store and installs a fresh
// session, like reloading the dashboard after a reset.
func (a *App) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.sess
	err := old.Reset(ctx)
	a.epoch += old.Version()
	a.sess = a.newSession()
	if err != nil && !errors.Is(err, session.ErrClosed) {
		return err
	}
	return nil
}

// Run drives the dispatcher and every payload source until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	ns := inbound.Namespace(a.cfg.Namespace)
	g.Go(func() error { return a.dispatcher.Run(ctx) })
	sources := []inbound.Runner{
		&inbound.BusSource{Bus: a.bus, Namespace: ns},
		&inbound.ReplaySource{Store: a.store},
	}
	if strings.TrimSpace(a.cfg.InboxPath) != "" {
		sources = append(sources, &inbound.WatchSource{Path: a.cfg.InboxPath, Debounce: 300 * time.Millisecond})
	}
	for _, src := range sources {
		g.Go(func() error { return src.Run(ctx, a.dispatcher) })
	}
	return g.Wait()
}

// Serve runs the HTTP server on cfg.Addr together with Run.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Str("namespace", a.cfg.Namespace).Msg("dashboard listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler returns the HTTP surface: dashboard page, report API, exports,
// intake endpoints and the audit proxy.
func (a *App) Handler() http.Handler {
	ns := inbound.Namespace(a.cfg.Namespace)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", a.handlePage)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/report", a.handleReport)
	mux.HandleFunc("GET /api/report/version", a.handleVersion)
	mux.HandleFunc("GET /api/report/fragment", a.handleFragment)
	mux.HandleFunc("GET /api/report/chart.svg", a.handleChart(radar.SVGRenderer{}))
	mux.HandleFunc("GET /api/report/chart.png", a.handleChart(radar.PNGRenderer{}))
	mux.HandleFunc("GET /api/export", a.handleExportHTML)
	mux.HandleFunc("GET /api/export.pdf", a.handleExportPDF)
	mux.Handle("POST /api/messages", &inbound.HTTPSource{
		Handler:   a.dispatcher,
		Namespace: ns,
		Source:    inbound.SourceWindow,
		Limiter:   a.intake,
		MaxBytes:  a.cfg.MaxBodyBytes,
		Now:       a.now,
	})
	mux.Handle("POST /api/paste", &inbound.HTTPSource{
		Handler:   a.dispatcher,
		Namespace: ns,
		Source:    inbound.SourcePaste,
		Raw:       true,
		Limiter:   a.intake,
		MaxBytes:  a.cfg.MaxBodyBytes,
		Now:       a.now,
	})
	mux.HandleFunc("POST /api/reset", a.handleReset)
	mux.HandleFunc("POST /api/openai", a.handleAudit)
	if dir := strings.TrimSpace(a.cfg.StaticDir); dir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(dir)))
	}

	return logRequests(cors(a.cfg.CORSOrigins, mux))
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

type errorBody struct {
	Error string `json:"error"`
}

type reportBody struct {
	Report     *report.Report `json:"report"`
	Source     inbound.Source `json:"source"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Status     string         `json:"status"`
	Version    uint64         `json:"version"`
	ChartError string         `json:"chartError,omitempty"`
}

func (a *App) handlePage(w http.ResponseWriter, r *http.Request) {
	v, _ := a.Session().Current()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(render.Page(v, a.Version())))
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, struct {
		Status string    `json:"status"`
		Build  BuildInfo `json:"build"`
		Agent  bool      `json:"agent"`
	}{Status: "ok", Build: CurrentBuild(), Agent: a.auditor != nil})
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	v, _ := a.Session().Current()
	if v.Empty() {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "nenhum relatório carregado"})
		return
	}
	etag := `"` + v.Report.ID + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	body := reportBody{
		Report:     v.Report,
		Source:     v.Source,
		ReceivedAt: v.ReceivedAt,
		Status:     render.Status(v.Source, v.ReceivedAt),
		Version:    a.Version(),
	}
	if v.ChartErr != nil {
		body.ChartError = v.ChartErr.Error()
	}
	respondJSON(w, http.StatusOK, body)
}

func (a *App) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, struct {
		Version uint64 `json:"version"`
	}{Version: a.Version()})
}

func (a *App) handleFragment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(a.Session().Present()))
}

func (a *App) handleChart(rr radar.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := a.Session().ChartBytes(rr)
		switch {
		case errors.Is(err, radar.ErrInsufficientAxes):
			respondJSON(w, http.StatusNotFound, errorBody{Error: render.InsufficientNotice})
			return
		case err != nil:
			log.Warn().Err(err).Str("media", rr.MediaType()).Msg("chart render failed")
			respondJSON(w, http.StatusInternalServerError, errorBody{Error: render.ChartFailure})
			return
		}
		w.Header().Set("Content-Type", rr.MediaType())
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}

func (a *App) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	v, _ := a.Session().Current()
	if v.Empty() {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "nenhum relatório carregado"})
		return
	}
	now := a.now()
	snap, err := Snapshot(v.Report, a.cfg.ChartFormat, radar.DefaultConfig())
	if err != nil {
		log.Warn().Err(err).Msg("export snapshot failed; exporting without chart")
	}
	defer snap.Dispose()
	attachment(w, "text/html; charset=utf-8", render.ExportFilename(now, "html"))
	_, _ = w.Write([]byte(render.Standalone(v.Report, snap, now)))
}

func (a *App) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	v, _ := a.Session().Current()
	if v.Empty() {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "nenhum relatório carregado"})
		return
	}
	now := a.now()
	var buf bytes.Buffer
	if err := render.PDF(v.Report, now, &buf); err != nil {
		log.Warn().Err(err).Msg("pdf export failed")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "falha ao gerar PDF"})
		return
	}
	attachment(w, radar.MediaPDF, render.ExportFilename(now, "pdf"))
	_, _ = w.Write(buf.Bytes())
}

func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	if !inbound.SameOrigin(r) {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "cross-origin reset refused"})
		return
	}
	if err := a.Reset(r.Context()); err != nil {
		log.Warn().Err(err).Msg("reset failed")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Version uint64 `json:"version"`
	}{Status: "reset", Version: a.Version()})
}

func (a *App) handleAudit(w http.ResponseWriter, r *http.Request) {
	if a.auditor == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "LLM_API_KEY não configurada."})
		return
	}
	if !a.intake.Allow() {
		respondJSON(w, http.StatusTooManyRequests, errorBody{Error: "Muitas requisições."})
		return
	}
	var req agent.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.cfg.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Payload muito grande."})
			return
		}
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "JSON inválido no corpo da requisição."})
		return
	}
	text, err := a.auditor.Audit(r.Context(), req)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: `Campo "message" obrigatório.`})
		return
	case errors.Is(err, agent.ErrEmptyResponse):
		respondJSON(w, http.StatusBadGateway, errorBody{Error: "O modelo não retornou resposta de texto."})
		return
	case err != nil:
		log.Warn().Err(err).Msg("audit failed")
		respondJSON(w, http.StatusBadGateway, errorBody{Error: "Falha ao contatar o modelo."})
		return
	}
	ns := inbound.Namespace(a.cfg.Namespace)
	n := a.bus.Publish(inbound.Message{Type: ns.Response(), Payload: text})
	log.Info().Int("bytes", len(text)).Int("listeners", n).Msg("audit response broadcast")
	respondJSON(w, http.StatusOK, struct {
		Text string `json:"text"`
	}{Text: text})
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
