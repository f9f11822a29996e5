package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"camproxy/internal/cache"
	"camproxy/internal/config"
	"camproxy/internal/placeholder"
	"camproxy/internal/registry"
	"camproxy/internal/snapshot"
)

// statsSource is implemented by sources that sit behind a cache.
type statsSource interface {
	Stats() cache.Stats
}

type Handlers struct {
	config      *config.Config
	logger      *zap.Logger
	source      snapshot.Source
	registry    *registry.Registry
	placeholder *placeholder.Renderer
}

func New(config *config.Config, logger *zap.Logger, source snapshot.Source, registry *registry.Registry, placeholder *placeholder.Renderer) *Handlers {
	return &Handlers{
		config:      config,
		logger:      logger,
		source:      source,
		registry:    registry,
		placeholder: placeholder,
	}
}

// Routes wires every endpoint onto a fresh mux.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/camera-proxy", h.HandleCameraProxy)
	mux.Handle("/api/cameras", h.CORSMiddleware(http.HandlerFunc(h.HandleCameras)))
	mux.HandleFunc("/healthz", h.HandleHealthz)
	if h.placeholder != nil {
		mux.Handle(h.config.PlaceholderPath, h.placeholder)
	}

	return h.RequestLoggingMiddleware(mux)
}

type ctxKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		w.Header().Set("X-Request-ID", requestID)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), ctxKey{}, requestID)))

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

// CORSMiddleware applies the configured origin to auxiliary endpoints.
// The proxy endpoint always answers with a wildcard and handles its own
// preflight.
func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := h.config.AllowedOrigin
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleCameraProxy serves a still image for ?url=. Upstream failures of any
// kind redirect to the placeholder image; only a missing parameter is a
// client error.
func (h *Handlers) HandleCameraProxy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sourceURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if sourceURL == "" {
		h.logger.Warn("Camera proxy request rejected",
			zap.String("request_id", requestID(r.Context())),
			zap.String("kind", snapshot.KindMissingParameter))
		writeJSONError(w, http.StatusBadRequest, "Missing 'url' parameter")
		return
	}

	img, err := h.source.Snapshot(r.Context(), sourceURL)
	if err != nil {
		h.logger.Warn("Camera proxy failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("source_url", sourceURL),
			zap.String("kind", snapshot.Kind(err)),
			zap.Error(err))
		h.redirectToPlaceholder(w, r)
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(img.Data), 16) + `"`

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(h.config.CacheControlMaxAge))
	w.Header().Set("ETag", etag)
	if img.CacheStatus != "" {
		w.Header().Set("X-Cache", img.CacheStatus)
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (h *Handlers) redirectToPlaceholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.config.PlaceholderPath, http.StatusFound)
}

func (h *Handlers) HandleCameras(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cameras := []registry.Camera{}
	if h.registry != nil {
		cameras = h.registry.GetCameras()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cameras)
}

type healthResponse struct {
	Status  string       `json:"status"`
	Cameras int          `json:"cameras"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{Status: "ok"}
	if h.registry != nil {
		resp.Cameras = h.registry.Len()
	}
	if s, ok := h.source.(statsSource); ok {
		stats := s.Stats()
		resp.Cache = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
