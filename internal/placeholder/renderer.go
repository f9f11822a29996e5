package placeholder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 320
	Height = 240

	label = "CAMERA OFFLINE"
)

var (
	background = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}
	foreground = color.RGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF}
)

// Result is the rendered placeholder, immutable after New returns.
type Result struct {
	Data        []byte
	ContentType string
	ETag        string
	Size        int
}

type Renderer struct {
	result *Result
	logger *zap.Logger
}

// New renders the placeholder once. If overridePath is set the file is
// served verbatim instead of the generated image.
func New(overridePath string, logger *zap.Logger) (*Renderer, error) {
	var (
		data        []byte
		contentType = "image/jpeg"
		err         error
	)

	if overridePath != "" {
		data, err = os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read placeholder file: %w", err)
		}
		contentType = http.DetectContentType(data)
		logger.Info("Loaded placeholder override", zap.String("path", overridePath), zap.Int("bytes", len(data)))
	} else {
		data, err = Render(label)
		if err != nil {
			return nil, err
		}
	}

	return &Renderer{
		result: &Result{
			Data:        data,
			ContentType: contentType,
			ETag:        ETag(data),
			Size:        len(data),
		},
		logger: logger,
	}, nil
}

func (r *Renderer) Result() *Result {
	return r.result
}

// Render draws text centred on a dark frame and encodes it as JPEG.
func Render(text string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(foreground),
		Face: face,
	}
	textWidth := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((Width-textWidth)/2, (Height+face.Ascent)/2)
	d.DrawString(text)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 82}); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// ETag returns a quoted strong validator for data.
func ETag(data []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(data), 16) + `"`
}

// ServeHTTP serves the placeholder with a long cache lifetime.
func (r *Renderer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := r.result
	w.Header().Set("ETag", res.ETag)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if match := req.Header.Get("If-None-Match"); match != "" && match == res.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(res.Size))

	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(res.Data)
}
