package placeholder

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRenderProducesDecodableJPEG(t *testing.T) {
	data, err := Render("CAMERA OFFLINE")
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder is not a JPEG: %v", err)
	}
	if cfg.Width != Width || cfg.Height != Height {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestNewGenerated(t *testing.T) {
	r, err := New("", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	res := r.Result()
	if res.ContentType != "image/jpeg" || res.Size != len(res.Data) || res.ETag != ETag(res.Data) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNewOverride(t *testing.T) {
	data, err := Render("CUSTOM")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "offline.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r.Result().Data, data) {
		t.Error("override file was not served verbatim")
	}

	if _, err := New(filepath.Join(t.TempDir(), "missing.jpg"), zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for missing override file")
	}
}

func TestServeHTTP(t *testing.T) {
	r, err := New("", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/camera-offline.jpg", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/jpeg" || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("headers = %v", rec.Header())
	}
	if !bytes.Equal(rec.Body.Bytes(), r.Result().Data) {
		t.Error("body differs from rendered placeholder")
	}

	req := httptest.NewRequest(http.MethodGet, "/static/camera-offline.jpg", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Errorf("conditional GET: status=%d body=%d bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/static/camera-offline.jpg", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}
