package inbound

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/comtesta/internal/extract"
)

// MaxBodyBytes caps inbound request bodies.
const MaxBodyBytes = 1 << 20

// HTTPSource accepts payloads over HTTP. With Raw unset it expects the JSON
// Message envelope of the window channel; with Raw set the body itself is the
// report text (the paste action). Cross-origin requests are refused.
type HTTPSource struct {
	Handler   Handler
	Namespace Namespace
	Source    Source
	Raw       bool
	Limiter   *rate.Limiter
	Extractor extract.Extractor
	MaxBytes  int64
	Now       func() time.Time
}

type acceptResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *HTTPSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, acceptResponse{Status: "error", Error: "method not allowed"})
		return
	}
	if !SameOrigin(r) {
		writeJSON(w, http.StatusForbidden, acceptResponse{Status: "error", Error: "cross-origin message refused"})
		return
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, acceptResponse{Status: "error", Error: "rate limited"})
		return
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, acceptResponse{Status: "error", Error: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, acceptResponse{Status: "error", Error: "read body"})
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	text, ok := s.decode(mediaType, body)
	if !ok {
		writeJSON(w, http.StatusBadRequest, acceptResponse{Status: "error", Error: "expected {type: \"" + s.Namespace.Response() + "\", payload: string}"})
		return
	}
	if mediaType == "text/html" || extract.LooksLikeHTML(text) {
		text = s.extractor().Extract([]byte(text)).Text
	}

	src := s.Source
	if src == "" {
		src = SourceWindow
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	log.Info().Str("source", string(src)).Int("bytes", len(text)).Msg("payload received")
	if err := s.Handler.OnPayload(r.Context(), Payload{Text: text, Source: src, ReceivedAt: now()}); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, acceptResponse{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, acceptResponse{Status: "accepted"})
}

func (s *HTTPSource) decode(mediaType string, body []byte) (string, bool) {
	if s.Raw && mediaType != "application/json" {
		return string(body), true
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		if s.Raw {
			return string(body), true
		}
		return "", false
	}
	if s.Raw && m.Type == "" {
		return m.Payload, true
	}
	if m.Type != s.Namespace.Response() {
		return "", false
	}
	return m.Payload, true
}

func (s *HTTPSource) extractor() extract.Extractor {
	if s.Extractor != nil {
		return s.Extractor
	}
	return extract.HeuristicExtractor{}
}

// SameOrigin reports whether a browser request originates from the serving
// host. Requests without Origin or Sec-Fetch-Site headers (non-browser
// clients) are accepted.
func SameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "cross-site", "same-site":
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return origin == ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
