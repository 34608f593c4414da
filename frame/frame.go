package frame

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kaireichart/vor-nav-display/log"
)

// DefaultMaxBytes caps how much unparsed input may accumulate before the
// buffer is thrown away.
const DefaultMaxBytes = 1 << 20

var (
	// ErrMalformed means the buffer holds text that no further input can
	// turn into valid JSON. The buffer has been discarded.
	ErrMalformed = errors.New("malformed JSON input")
	// ErrOverflow means the buffer grew past its cap without completing a
	// value. The buffer has been discarded.
	ErrOverflow = errors.New("frame buffer overflow")
)

// Stats counts what a Reconstructor has seen so far.
type Stats struct {
	Lines     int
	Frames    int
	Resyncs   int
	Overflows int
}

// Reconstructor rebuilds discrete JSON values from line-wrapped input
// that carries no length prefix or delimiter. It is not safe for
// concurrent use; run it on the reader goroutine.
type Reconstructor struct {
	buf      bytes.Buffer
	maxBytes int
	stats    Stats
}

func NewReconstructor(maxBytes int) *Reconstructor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Reconstructor{maxBytes: maxBytes}
}

// Push appends one line, terminator included, or a piece of a longer
// line, and returns every value the buffer now completes, in order. An
// incomplete buffer yields no frames and no error. On ErrMalformed or
// ErrOverflow the returned frames are still valid; only the unusable
// remainder was discarded.
func (r *Reconstructor) Push(line []byte) ([][]byte, error) {
	if bytes.HasSuffix(line, []byte{'\n'}) {
		r.stats.Lines++
	}
	r.buf.Write(line)

	frames, consumed, err := split(r.buf.Bytes())
	r.stats.Frames += len(frames)

	if err != nil {
		r.stats.Resyncs++
		r.buf.Reset()
		return frames, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	r.buf.Next(consumed)
	if len(bytes.TrimSpace(r.buf.Bytes())) == 0 {
		r.buf.Reset()
	}

	if r.buf.Len() > r.maxBytes {
		n := r.buf.Len()
		r.stats.Overflows++
		r.buf.Reset()
		return frames, fmt.Errorf("%w: %d bytes pending, limit %d", ErrOverflow, n, r.maxBytes)
	}

	return frames, nil
}

// Pending reports how many bytes are buffered without forming a value.
func (r *Reconstructor) Pending() int { return r.buf.Len() }

func (r *Reconstructor) Stats() Stats { return r.stats }

// split decodes consecutive values from b. consumed is the offset just
// past the last complete value. A truncated trailing value is not an
// error; a syntax error is.
func split(b []byte) (frames [][]byte, consumed int, err error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		switch {
		case err == nil:
			frames = append(frames, append([]byte(nil), raw...))
			consumed = int(dec.InputOffset())
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return frames, consumed, nil
		default:
			return frames, consumed, err
		}
	}
}

// readChunk bounds a single read; longer lines reach the Reconstructor
// in pieces so its cap applies before a newline ever arrives.
const readChunk = 64 << 10

// Scanner feeds a reader through a Reconstructor.
type Scanner struct {
	MaxBytes int
	Logger   *log.Logger
	// OnDrop, if set, is called with every discarded chunk's error.
	OnDrop func(error)
}

// Scan reads r until EOF or ctx is done, handing every complete frame to
// fn. Malformed input is logged and skipped. EOF is a normal end and
// returns nil; whatever partial value is still buffered then is dropped.
func (s Scanner) Scan(ctx context.Context, r io.Reader, fn func([]byte)) error {
	lg := s.Logger
	rc := NewReconstructor(s.MaxBytes)
	br := bufio.NewReaderSize(r, min(rc.maxBytes, readChunk))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// The slice is only valid until the next read; Push copies it.
		chunk, readErr := br.ReadSlice('\n')
		if len(chunk) > 0 {
			frames, err := rc.Push(chunk)
			for _, f := range frames {
				fn(f)
			}
			if err != nil {
				lg.Warn("discarding unparsable input", "error", err, "line", rc.stats.Lines)
				if s.OnDrop != nil {
					s.OnDrop(err)
				}
			}
		}

		switch {
		case readErr == nil, errors.Is(readErr, bufio.ErrBufferFull):
		case errors.Is(readErr, io.EOF):
			if n := rc.Pending(); n > 0 {
				lg.Info("input closed with partial frame", "pending_bytes", n)
			}
			st := rc.Stats()
			lg.Info("input closed", "lines", st.Lines, "frames", st.Frames,
				"resyncs", st.Resyncs, "overflows", st.Overflows)
			return nil
		default:
			return fmt.Errorf("read input: %w", readErr)
		}
	}
}
