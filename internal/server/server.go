// Package server exposes the studio over an HTTP JSON API consumed by the
// dashboard.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/apperr"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/events"
	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

const (
	maxBodyBytes = 1 << 20
	tokenHeader  = "X-Content-Token"
	healthPath   = "/api/health"
)

// TokenValidator exposes the minimal behaviour needed to validate API tokens.
type TokenValidator interface {
	IsValidToken(token string) bool
}

// Options carries the optional collaborators of the handler. A nil
// Validator disables authentication, a nil Limiter disables rate limiting
// and a nil Hub turns the event stream off.
type Options struct {
	Validator TokenValidator
	Limiter   *RateLimiter
	Hub       *events.Hub
	Logger    *log.Logger
}

type serverHandler struct {
	core      *studio.Studio
	validator TokenValidator
	limiter   *RateLimiter
	hub       *events.Hub
	logger    *log.Logger
	keepAlive time.Duration
}

type envelope map[string]any

// New constructs the HTTP handler serving the API.
func New(core *studio.Studio, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &serverHandler{
		core:      core,
		validator: opts.Validator,
		limiter:   opts.Limiter,
		hub:       opts.Hub,
		logger:    logger,
		keepAlive: 25 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, h.handleHealth)

	mux.HandleFunc("GET /api/episodes", h.handleListEpisodes)
	mux.HandleFunc("POST /api/episodes", h.handleCreateEpisode)
	mux.HandleFunc("GET /api/episodes/{series}/{episode}", h.handleGetEpisode)
	mux.HandleFunc("PATCH /api/episodes/{series}/{episode}", h.handleUpdateEpisode)

	mux.HandleFunc("GET /api/releases", h.handleReleaseQueue)
	mux.HandleFunc("POST /api/releases/schedule", h.handleScheduleRelease)
	mux.HandleFunc("PUT /api/releases/status", h.handleReleaseStatus)
	mux.HandleFunc("GET /api/distribution", h.handleDistribution)
	mux.HandleFunc("GET /api/pipeline", h.handlePipeline)

	mux.HandleFunc("GET /api/assets", h.handleListAssets)
	mux.HandleFunc("GET /api/assets/info", h.handleAssetInfo)
	mux.HandleFunc("POST /api/assets/folder", h.handleCreateFolder)
	mux.HandleFunc("POST /api/assets/upload", h.handleUpload)
	mux.HandleFunc("PATCH /api/assets/{path...}", h.handleMoveAsset)
	mux.HandleFunc("DELETE /api/assets/{path...}", h.handleDeleteAsset)

	mux.HandleFunc("GET /api/events", h.handleEvents)

	var handler http.Handler = mux
	handler = h.requireToken(handler)
	if h.limiter != nil {
		handler = h.limiter.Middleware(handler)
	}
	return logRequests(logger, handler)
}

func (h *serverHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"success":   true,
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *serverHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.validator == nil || r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if token == "" || !h.validator.IsValidToken(token) {
			writeJSON(w, http.StatusUnauthorized, envelope{"success": false, "error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if token := strings.TrimSpace(r.Header.Get(tokenHeader)); token != "" {
		return token
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (h *serverHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	body := envelope{"success": false, "error": apperr.Message(err)}
	if details := apperr.Details(err); len(details) > 1 {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

var errInvalidBody = apperr.Invalidf("Invalid request body")

// decodeObject reads a JSON object body. Arrays, scalars and malformed
// documents are rejected.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Invalidf("Request body too large")
		}
		return nil, errInvalidBody
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, errInvalidBody
	}
	return obj, nil
}

func bodyString(body map[string]any, key string) string {
	if v, ok := body[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the flusher of the event stream.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		logger.Printf("%s %s %d %dB %s id=%s", r.Method, r.URL.Path, sw.status, sw.bytes, time.Since(start).Truncate(time.Millisecond), id)
	})
}
