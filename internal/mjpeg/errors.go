package mjpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidFrame means the attempt budget ran out, or the stream ended,
	// without an acceptable frame.
	ErrNoValidFrame = errors.New("mjpeg: no valid frame found")

	// ErrBufferOverflow means the buffer hit its ceiling at least once and
	// the emergency pass never produced a frame before giving up.
	ErrBufferOverflow = errors.New("mjpeg: buffer overflow without a valid frame")
)

// ExhaustedError describes a session that ended without a frame.
// It matches ErrNoValidFrame or ErrBufferOverflow via errors.Is.
type ExhaustedError struct {
	Reason     error
	Reads      int
	BytesRead  int64
	PeakBuffer int // largest buffer capacity held by the session
	Overflows  int
	EOF        bool
}

func (e *ExhaustedError) Error() string {
	cause := "read limit reached"
	if e.EOF {
		cause = "stream ended"
	}
	return fmt.Sprintf("%v: %s after %d reads (%d bytes, %d overflows)",
		e.Reason, cause, e.Reads, e.BytesRead, e.Overflows)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Reason
}

// ReadError wraps a failure reading the upstream body mid-stream.
type ReadError struct {
	Reads int
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("mjpeg: stream read failed after %d reads: %v", e.Reads, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
