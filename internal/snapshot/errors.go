package snapshot

import (
	"context"
	"errors"

	"camproxy/internal/mjpeg"
	"camproxy/internal/upstream"
)

var (
	ErrImageTooLarge = errors.New("snapshot: image exceeds size limit")
	ErrBodyRead      = errors.New("snapshot: reading image body failed")
)

// Error kinds, as logged and as used to pick the response.
const (
	KindMissingParameter      = "MissingParameter"
	KindUpstreamTimeout       = "UpstreamTimeout"
	KindUpstreamHTTPError     = "UpstreamHTTPError"
	KindStreamReadError       = "StreamReadError"
	KindNoValidFrameFound     = "NoValidFrameFound"
	KindBufferOverflowNoFrame = "BufferOverflowNoFrame"
)

// Kind maps a pipeline error onto one of the error kinds. Timeouts win over
// read errors because a deadline firing mid-stream also surfaces as a read
// failure.
func Kind(err error) string {
	var (
		httpErr      *upstream.HTTPError
		transportErr *upstream.TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, upstream.ErrEmptyURL):
		return KindMissingParameter
	case errors.Is(err, upstream.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	case errors.As(err, &httpErr), errors.As(err, &transportErr), errors.Is(err, upstream.ErrInvalidURL):
		return KindUpstreamHTTPError
	case errors.Is(err, mjpeg.ErrBufferOverflow):
		return KindBufferOverflowNoFrame
	case errors.Is(err, mjpeg.ErrNoValidFrame):
		return KindNoValidFrameFound
	default:
		return KindStreamReadError
	}
}
