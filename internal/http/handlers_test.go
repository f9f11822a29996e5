package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"camproxy/internal/cache"
	"camproxy/internal/config"
	"camproxy/internal/mjpeg"
	"camproxy/internal/placeholder"
	"camproxy/internal/registry"
	"camproxy/internal/snapshot"
	"camproxy/internal/upstream"
)

type testEnv struct {
	handler http.Handler
	logs    *observer.ObservedLogs
	cfg     *config.Config
}

func newTestEnv(t *testing.T, cached bool) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	cfg := config.Default()
	cfg.UpstreamTimeout = 2 * time.Second

	fetcher := upstream.New(upstream.Options{Timeout: cfg.UpstreamTimeout, UserAgent: cfg.UpstreamUserAgent}, log)
	extractor := mjpeg.NewExtractor(mjpeg.DefaultOptions(), log)

	var source snapshot.Source = snapshot.NewPipeline(fetcher, extractor, cfg.MaxImageBytes, log)
	if cached {
		source = snapshot.NewCached(source, cache.NewMemoryCache(cfg.CacheMaxEntries), cfg.CacheTTL, log)
	}

	ph, err := placeholder.New("", log)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New(filepath.Join(t.TempDir(), "camera_data.json"), log)
	if err := reg.Load(); err != nil {
		t.Fatal(err)
	}

	h := New(cfg, log, source, reg, ph)
	return &testEnv{handler: h.Routes(), logs: logs, cfg: cfg}
}

func (e *testEnv) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jpegFixture(t *testing.T, text string) []byte {
	t.Helper()
	data, err := placeholder.Render(text)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// stillCamera serves one JPEG and counts requests.
func stillCamera(t *testing.T, data []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func proxyURL(source string) string {
	return "/api/camera-proxy?url=" + source
}

func TestCameraProxyMissingURL(t *testing.T) {
	env := newTestEnv(t, true)

	for _, target := range []string{"/api/camera-proxy", "/api/camera-proxy?url=", "/api/camera-proxy?url=%20"} {
		rec := env.get(t, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Errorf("%s: body = %q", target, rec.Body.String())
		}
	}
}

func TestCameraProxySingleImage(t *testing.T) {
	env := newTestEnv(t, true)
	data := jpegFixture(t, "CAM 1")
	srv, hits := stillCamera(t, data)

	rec := env.get(t, proxyURL(srv.URL+"/snapshot.jpg"), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("single image was not passed through unchanged")
	}
	h := rec.Header()
	if h.Get("Content-Type") != "image/jpeg" ||
		h.Get("Cache-Control") != "public, max-age=30" ||
		h.Get("Access-Control-Allow-Origin") != "*" ||
		h.Get("X-Cache") != "MISS" ||
		h.Get("ETag") == "" ||
		h.Get("X-Request-ID") == "" {
		t.Errorf("unexpected headers %v", h)
	}

	rec = env.get(t, proxyURL(srv.URL+"/snapshot.jpg"), nil)
	if rec.Header().Get("X-Cache") != "HIT" || !bytes.Equal(rec.Body.Bytes(), data) {
		t.Errorf("second request: X-Cache=%s", rec.Header().Get("X-Cache"))
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream contacted %d times, want 1", n)
	}
}

func TestCameraProxyWithoutCacheOmitsXCache(t *testing.T) {
	env := newTestEnv(t, false)
	srv, hits := stillCamera(t, jpegFixture(t, "CAM 2"))

	for i := 0; i < 2; i++ {
		rec := env.get(t, proxyURL(srv.URL+"/snapshot.jpg"), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if _, ok := rec.Header()["X-Cache"]; ok {
			t.Error("X-Cache present with caching disabled")
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream contacted %d times, want 2", n)
	}
}

func TestCameraProxyConditionalGet(t *testing.T) {
	env := newTestEnv(t, true)
	srv, _ := stillCamera(t, jpegFixture(t, "CAM 3"))

	first := env.get(t, proxyURL(srv.URL+"/snapshot.jpg"), nil)
	etag := first.Header().Get("ETag")

	rec := env.get(t, proxyURL(srv.URL+"/snapshot.jpg"), http.Header{"If-None-Match": {etag}})
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Errorf("status=%d body=%d", rec.Code, rec.Body.Len())
	}
	if rec.Header().Get("ETag") != etag {
		t.Error("304 must repeat the ETag")
	}
}

func TestCameraProxyUpstreamErrorRedirects(t *testing.T) {
	env := newTestEnv(t, true)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	source := srv.URL + "/gone.jpg"
	rec := env.get(t, proxyURL(source), nil)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Location") != env.cfg.PlaceholderPath {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if rec.Header().Get("Cache-Control") != "no-store" || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("headers = %v", rec.Header())
	}

	entries := env.logs.FilterMessage("Camera proxy failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["source_url"] != source || fields["kind"] != snapshot.KindUpstreamHTTPError {
		t.Errorf("log fields = %v", fields)
	}
}

func TestCameraProxyStreamWithoutFramesRedirects(t *testing.T) {
	env := newTestEnv(t, true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write(bytes.Repeat([]byte("--frame\r\nContent-Type: text/plain\r\n\r\nnoise\r\n"), 200))
	}))
	defer srv.Close()

	rec := env.get(t, proxyURL(srv.URL+"/mjpg/video.mjpg"), nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	fields := env.logs.FilterMessage("Camera proxy failed").All()[0].ContextMap()
	if fields["kind"] != snapshot.KindNoValidFrameFound {
		t.Errorf("kind = %v", fields["kind"])
	}
}

func TestCameraProxyLiveStream(t *testing.T) {
	env := newTestEnv(t, true)

	stream := gomjpeg.NewStream()
	defer stream.Close()
	frame := jpegFixture(t, "LIVE")
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stream.Update(frame)
			}
		}
	}()

	srv := httptest.NewServer(stream)
	defer srv.Close()

	rec := env.get(t, proxyURL(srv.URL+"/mjpg/video.mjpg"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), frame) {
		t.Errorf("extracted %d bytes, want the %d byte frame", rec.Body.Len(), len(frame))
	}
}

func TestCameraProxyPreflightAndMethods(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/camera-proxy", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("OPTIONS status = %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "*" ||
		h.Get("Access-Control-Allow-Methods") != "GET, OPTIONS" ||
		h.Get("Access-Control-Allow-Headers") != "Content-Type" {
		t.Errorf("preflight headers = %v", h)
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/camera-proxy?url=http://x/y.jpg", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s status = %d", method, rec.Code)
		}
	}
}

func TestPlaceholderRoute(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.get(t, env.cfg.PlaceholderPath, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" || rec.Body.Len() == 0 {
		t.Errorf("status=%d headers=%v", rec.Code, rec.Header())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, true)
	srv, _ := stillCamera(t, jpegFixture(t, "CAM"))
	env.get(t, proxyURL(srv.URL+"/a.jpg"), nil)

	rec := env.get(t, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Cache == nil || body.Cache.Entries != 1 || body.Cache.Misses != 1 {
		t.Errorf("health = %+v (cache %+v)", body, body.Cache)
	}

	uncached := newTestEnv(t, false)
	rec = uncached.get(t, "/healthz", nil)
	if bytes.Contains(rec.Body.Bytes(), []byte(`"cache"`)) {
		t.Errorf("cache stats reported without a cache: %s", rec.Body.String())
	}
}

func TestHandleCameras(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera_data.json")
	data := `[{"city":"Oslo","country":"Norway","image_url":"http://10.0.0.9/snapshot.jpg"},{"city":"X","image_url":"N/A"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	log := zaptest.NewLogger(t)
	reg := registry.New(path, log)
	if err := reg.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.AllowedOrigin = "https://map.example"
	h := New(cfg, log, nil, reg, nil).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cameras", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://map.example" {
		t.Errorf("ACAO = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	var cams []registry.Camera
	if err := json.Unmarshal(rec.Body.Bytes(), &cams); err != nil {
		t.Fatal(err)
	}
	if len(cams) != 1 || cams[0].City != "Oslo" || cams[0].ID == "" {
		t.Errorf("cameras = %+v", cams)
	}
}

func TestRequestLogging(t *testing.T) {
	env := newTestEnv(t, true)
	env.get(t, "/api/camera-proxy", nil)

	entries := env.logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d request logs", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusBadRequest) || fields["path"] != "/api/camera-proxy" || fields["request_id"] == "" {
		t.Errorf("fields = %v", fields)
	}
}
