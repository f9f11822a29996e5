package snapshot

import (
	"bytes"
	"image"
	"image/jpeg"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"camproxy/internal/mjpeg"
	"camproxy/internal/upstream"
)

func noisyJPEG(t testing.TB, seed int64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	rng := rand.New(rand.NewSource(seed))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, timeout time.Duration) *Pipeline {
	t.Helper()
	log := zaptest.NewLogger(t)
	fetcher := upstream.New(upstream.Options{Timeout: timeout, UserAgent: "test"}, log)
	extractor := mjpeg.NewExtractor(mjpeg.DefaultOptions(), log)
	return NewPipeline(fetcher, extractor, 1<<20, log)
}
