package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ContentType is the media type of every extracted frame.
const ContentType = "image/jpeg"

type Options struct {
	ReadChunk         int  // bytes requested per read
	MaxReads          int  // read attempts before giving up
	MaxBuffer         int  // buffer ceiling that triggers the emergency pass
	BandMin           int  // preferred frame size band, inclusive
	BandMax           int
	MinFrame          int  // smallest acceptable frame
	EmergencyMinFrame int  // smallest acceptable frame on overflow
	ValidateAll       bool // validate down the ranked list instead of only the top candidate
}

func DefaultOptions() Options {
	return Options{
		ReadChunk:         32 << 10,
		MaxReads:          100,
		MaxBuffer:         2 << 20,
		BandMin:           5 << 10,
		BandMax:           1 << 20,
		MinFrame:          1000,
		EmergencyMinFrame: 500,
	}
}

type State int

const (
	StateReading State = iota
	StateScanning
	StateOverflow
	StateFound
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateScanning:
		return "scanning"
	case StateOverflow:
		return "overflow"
	case StateFound:
		return "found"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is a frame accepted by the extractor plus session diagnostics.
type Result struct {
	Frame       []byte
	ContentType string
	Reads       int
	BytesRead   int64
	Candidates  int  // candidates seen in the accepting scan
	Emergency   bool // accepted by the overflow pass
	Overflows   int
}

type Extractor struct {
	opts   Options
	logger *zap.Logger
}

func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	if opts.EmergencyMinFrame <= 0 {
		opts.EmergencyMinFrame = opts.MinFrame
	}
	return &Extractor{opts: opts, logger: logger}
}

// session is the per-request stream state. Nothing in it outlives Extract.
type session struct {
	state     State
	buf       []byte
	limit     int
	reads     int
	bytesRead int64
	overflows int
	peak      int
}

// Extract reads r until it secures one structurally valid JPEG frame.
// r is typically a live multipart body; the caller owns closing it, which
// is also how an in-flight read gets aborted.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (*Result, error) {
	s := &session{
		state: StateReading,
		limit: e.opts.MaxBuffer + e.opts.ReadChunk,
	}
	chunk := make([]byte, e.opts.ReadChunk)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ReadError{Reads: s.reads, Err: err}
		}

		s.state = StateReading
		n, readErr := r.Read(chunk)
		s.reads++

		if n > 0 {
			s.append(chunk[:n])
			s.state = StateScanning

			if res := e.scan(s, e.opts.MinFrame, true); res != nil {
				return res, nil
			}

			if len(s.buf) > e.opts.MaxBuffer {
				s.state = StateOverflow
				s.overflows++
				if res := e.scan(s, e.opts.EmergencyMinFrame, false); res != nil {
					res.Emergency = true
					e.logger.Debug("Frame accepted by emergency pass",
						zap.Int("frame_bytes", len(res.Frame)),
						zap.Int("buffer_bytes", len(s.buf)))
					return res, nil
				}
				s.trim()
				e.logger.Debug("Frame buffer over ceiling, trimmed",
					zap.Int("buffer_bytes", len(s.buf)),
					zap.Int("overflows", s.overflows))
			}
		}

		if readErr == io.EOF {
			return nil, s.exhausted(true)
		}
		if readErr != nil {
			return nil, &ReadError{Reads: s.reads, Err: readErr}
		}
		if s.reads >= e.opts.MaxReads {
			return nil, s.exhausted(false)
		}
	}
}

// scan ranks every candidate in the buffer and returns the accepted frame,
// or nil. Only the top-ranked candidate is judged unless ValidateAll is set.
func (e *Extractor) scan(s *session, minFrame int, preferBand bool) *Result {
	candidates := FindCandidates(s.buf)
	if len(candidates) == 0 {
		return nil
	}
	ranked := rankCandidates(candidates, e.opts.BandMin, e.opts.BandMax, preferBand)

	for i, c := range ranked {
		if i > 0 && !e.opts.ValidateAll {
			break
		}
		frame := s.buf[c.Start:c.End]
		if len(frame) < minFrame || !ValidFrame(frame) {
			continue
		}

		s.state = StateFound
		out := make([]byte, len(frame))
		copy(out, frame)
		return &Result{
			Frame:       out,
			ContentType: ContentType,
			Reads:       s.reads,
			BytesRead:   s.bytesRead,
			Candidates:  len(candidates),
			Overflows:   s.overflows,
		}
	}
	return nil
}

// append grows the buffer without letting its capacity pass the session
// limit (ceiling plus one chunk).
func (s *session) append(p []byte) {
	s.bytesRead += int64(len(p))
	need := len(s.buf) + len(p)
	if need > cap(s.buf) {
		newCap := 2 * cap(s.buf)
		if newCap < need {
			newCap = need
		}
		if newCap > s.limit {
			newCap = s.limit
		}
		grown := make([]byte, len(s.buf), newCap)
		copy(grown, s.buf)
		s.buf = grown
	}
	s.buf = append(s.buf, p...)
	if cap(s.buf) > s.peak {
		s.peak = cap(s.buf)
	}
}

// trim keeps the trailing half of the buffer, where the newest bytes are.
func (s *session) trim() {
	keep := len(s.buf) / 2
	s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
}

func (s *session) exhausted(eof bool) error {
	s.state = StateExhausted
	reason := ErrNoValidFrame
	if s.overflows > 0 {
		reason = ErrBufferOverflow
	}
	return &ExhaustedError{
		Reason:     reason,
		Reads:      s.reads,
		BytesRead:  s.bytesRead,
		PeakBuffer: s.peak,
		Overflows:  s.overflows,
		EOF:        eof,
	}
}

// IsExhausted reports whether err ended a session without a frame.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrNoValidFrame) || errors.Is(err, ErrBufferOverflow)
}
