package mjpeg

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"math/rand"
	"testing"
)

// syntheticFrame builds an exactly size-byte SOI..EOI run carrying SOF0 and
// SOS markers. The body is not decodable; it only needs the structure the
// extractor checks.
func syntheticFrame(size int, withSOF, withSOS bool) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})
	if withSOF {
		b.Write([]byte{0xFF, 0xC0, 0x00, 0x0B, 0x08, 0x00, 0x10, 0x00, 0x10, 0x01, 0x01, 0x11, 0x00})
	} else {
		// DHT shares the SOF code range and must not count as a frame header.
		b.Write([]byte{0xFF, 0xC4, 0x00, 0x03, 0x00})
	}
	if withSOS {
		b.Write([]byte{0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3F, 0x00})
	}
	for b.Len() < size-2 {
		b.WriteByte(0x55)
	}
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// realJPEG encodes a noisy image so the result lands in the preferred band.
func realJPEG(t testing.TB, w, h int, seed int64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
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

func multipartPart(boundary string, frame []byte) []byte {
	var b bytes.Buffer
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: image/jpeg\r\n\r\n")
	b.Write(frame)
	b.WriteString("\r\n")
	return b.Bytes()
}

// chunkReader returns its chunks one Read at a time, then err (io.EOF if nil).
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// endlessReader never ends and never emits an EOI.
type endlessReader struct {
	reads int
}

func (r *endlessReader) Read(p []byte) (int, error) {
	r.reads++
	for i := range p {
		p[i] = 0x42
	}
	if len(p) >= 2 && r.reads%3 == 0 {
		p[0], p[1] = 0xFF, 0xD8
	}
	return len(p), nil
}
