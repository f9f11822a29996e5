package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"camproxy/internal/mjpeg"
	"camproxy/internal/upstream"
)

const (
	StatusHit  = "HIT"
	StatusMiss = "MISS"
)

// Image is one still image ready to be served.
type Image struct {
	Data        []byte
	ContentType string
	Multipart   bool   // extracted from a live stream
	CacheStatus string // empty when no cache is in front of the source
}

// Source produces a still image for a camera URL.
type Source interface {
	Snapshot(ctx context.Context, sourceURL string) (*Image, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*upstream.Response, error)
}

// Pipeline is the uncached Source: fetch, classify, then extract a frame
// from streams or pass single images through untouched.
type Pipeline struct {
	fetcher       Fetcher
	extractor     *mjpeg.Extractor
	maxImageBytes int64
	logger        *zap.Logger
}

func NewPipeline(fetcher Fetcher, extractor *mjpeg.Extractor, maxImageBytes int64, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		extractor:     extractor,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

func (p *Pipeline) Snapshot(ctx context.Context, sourceURL string) (*Image, error) {
	resp, err := p.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	class := mjpeg.Classify(resp.ContentType, sourceURL)
	if class.Kind == mjpeg.SingleImage {
		return p.passThrough(resp)
	}

	p.logger.Debug("Extracting frame from stream",
		zap.String("source_url", sourceURL),
		zap.String("boundary", class.Boundary),
		zap.Bool("classified_by_url", class.ByURL),
	)

	res, err := p.extractor.Extract(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extract frame: %w", err)
	}

	p.logger.Debug("Frame extracted",
		zap.String("source_url", sourceURL),
		zap.Int("frame_bytes", len(res.Frame)),
		zap.Int("reads", res.Reads),
		zap.Int64("bytes_read", res.BytesRead),
		zap.Int("candidates", res.Candidates),
		zap.Bool("emergency", res.Emergency),
	)

	return &Image{
		Data:        res.Frame,
		ContentType: res.ContentType,
		Multipart:   true,
	}, nil
}

// passThrough forwards a single-image body byte for byte.
func (p *Pipeline) passThrough(resp *upstream.Response) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyRead, err)
	}
	if int64(len(data)) > p.maxImageBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, p.maxImageBytes)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Image{Data: data, ContentType: contentType}, nil
}
