package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultAccept = "image/avif,image/webp,image/apng,image/*,multipart/x-mixed-replace,*/*;q=0.8"

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client // nil uses a dedicated client with a cloned default transport
}

// Fetcher issues deadline-bounded GETs against camera snapshot URLs.
// It never retries.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

// Response is an open upstream response. The deadline set by Fetch keeps
// running while the body is read; Close releases the connection.
type Response struct {
	StatusCode  int
	ContentType string
	Body        io.Reader

	raw    io.ReadCloser
	cancel context.CancelFunc
}

func (r *Response) Close() error {
	err := r.raw.Close()
	r.cancel()
	return err
}

// Fetch starts a GET for sourceURL. The whole exchange, body included, is
// bounded by the fetcher timeout; expiry tears down the connection and
// surfaces ErrTimeout.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*Response, error) {
	if sourceURL == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, sourceURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	f.setHeaders(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
		}
		return nil, &TransportError{Err: err}
	}

	f.logger.Debug("Upstream responded",
		zap.String("source_url", sourceURL),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Int64("headers_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        &deadlineReader{r: resp.Body, ctx: ctx, timeout: f.timeout},
		raw:         resp.Body,
		cancel:      cancel,
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
}

// deadlineReader reports body read failures caused by the fetch deadline
// as ErrTimeout instead of the transport's generic cancellation error.
type deadlineReader struct {
	r       io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF && errors.Is(d.ctx.Err(), context.DeadlineExceeded) {
		return n, fmt.Errorf("%w after %s while reading body", ErrTimeout, d.timeout)
	}
	return n, err
}
