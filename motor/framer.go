package motor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// MaxRecordSize bounds a single record (one JSON line, or one direct-capture
	// request including its body) so a misbehaving peer cannot exhaust memory.
	MaxRecordSize = 100 * 1024 * 1024 // 100MB

	readBufferSize = 64 * 1024
)

// Mode selects how a connection's byte stream is framed.
type Mode string

const (
	// ModeDirect reads one raw HTTP request per connection.
	ModeDirect Mode = "direct"
	// ModeMirror reads newline-delimited JSON mirror records.
	ModeMirror Mode = "mirror"
	// ModeAuto picks ModeMirror when the first non-blank byte is '{', ModeDirect otherwise.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDirect, ModeMirror, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want direct, mirror or auto)", s)
	}
}

// RawRecord is one framed unit. Exactly one of Direct and Line is set.
type RawRecord struct {
	// Direct is the request read in direct-capture mode
	Direct *DirectCapture

	// Line is one JSON mirror record, without the trailing newline
	Line []byte

	// ReceivedAt is when the first byte of the record was read
	ReceivedAt time.Time
}

// Size is the number of payload bytes in the record.
func (r RawRecord) Size() int {
	if r.Direct != nil {
		return len(r.Direct.RequestLine) + len(r.Direct.Headers) + len(r.Direct.Body)
	}
	return len(r.Line)
}

// FramerOptions configures NewFramer.
type FramerOptions struct {
	Mode Mode

	// MaxRecordSize overrides the package limit when positive
	MaxRecordSize int

	// Now is used to stamp records, defaults to time.Now
	Now func() time.Time
}

func (o FramerOptions) limit() int {
	if o.MaxRecordSize > 0 {
		return o.MaxRecordSize
	}
	return MaxRecordSize
}

func (o FramerOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// NewFramer returns the framer for opts.Mode reading from r.
func NewFramer(r io.Reader, opts FramerOptions) (Framer, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	switch opts.Mode {
	case ModeDirect:
		return &DirectCaptureFramer{r: br, opts: opts}, nil
	case ModeMirror:
		return &LineFramer{r: br, opts: opts}, nil
	case ModeAuto, "":
		return &autoFramer{r: br, opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

// DirectCaptureFramer reads a request line, the header block up to and including
// the blank line, then everything else until EOF as the body. It yields at most
// one record.
type DirectCaptureFramer struct {
	r    *bufio.Reader
	opts FramerOptions
	done bool
}

func (f *DirectCaptureFramer) Next() (RawRecord, error) {
	if f.done {
		return RawRecord{}, io.EOF
	}
	f.done = true

	limit := f.opts.limit()

	requestLine, err := readLine(f.r, limit)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(requestLine) == 0 {
				return RawRecord{}, io.EOF
			}
			return RawRecord{}, ErrTruncatedHeader
		}
		return RawRecord{}, err
	}
	receivedAt := f.opts.now()
	remaining := limit - len(requestLine)

	var headers []byte
	for {
		line, err := readLine(f.r, remaining-len(headers))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return RawRecord{}, ErrTruncatedHeader
			}
			return RawRecord{}, err
		}
		headers = append(headers, line...)
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			break
		}
	}
	remaining -= len(headers)

	body, err := io.ReadAll(io.LimitReader(f.r, int64(remaining)+1))
	if err != nil {
		return RawRecord{}, err
	}
	if len(body) > remaining {
		return RawRecord{}, &OversizeError{Limit: limit}
	}

	return RawRecord{
		Direct: &DirectCapture{
			RequestLine: requestLine,
			Headers:     headers,
			Body:        body,
			ReceivedAt:  receivedAt,
		},
		ReceivedAt: receivedAt,
	}, nil
}

// LineFramer yields one record per non-blank line. A final line without a
// trailing newline is still a record.
type LineFramer struct {
	r    *bufio.Reader
	opts FramerOptions
}

func (f *LineFramer) Next() (RawRecord, error) {
	for {
		line, err := readLine(f.r, f.opts.limit())
		if err != nil && !errors.Is(err, io.EOF) {
			return RawRecord{}, err
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return RawRecord{Line: trimmed, ReceivedAt: f.opts.now()}, nil
		}
		if err != nil {
			return RawRecord{}, err
		}
	}
}

type autoFramer struct {
	r     *bufio.Reader
	opts  FramerOptions
	inner Framer
}

func (f *autoFramer) Next() (RawRecord, error) {
	if f.inner == nil {
		mode, err := detectMode(f.r)
		if err != nil {
			return RawRecord{}, err
		}
		if mode == ModeMirror {
			f.inner = &LineFramer{r: f.r, opts: f.opts}
		} else {
			f.inner = &DirectCaptureFramer{r: f.r, opts: f.opts}
		}
	}
	return f.inner.Next()
}

// detectMode skips leading whitespace and peeks at the first significant byte.
func detectMode(r *bufio.Reader) (Mode, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return "", err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := r.Discard(1); err != nil {
				return "", err
			}
		case '{':
			return ModeMirror, nil
		default:
			return ModeDirect, nil
		}
	}
}

// readLine reads through the next '\n' into a fresh slice. A line that grows past
// limit is consumed up to its newline and reported as an *OversizeError.
// At EOF the partial line (possibly empty) is returned with io.EOF.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > limit {
			if errors.Is(err, bufio.ErrBufferFull) {
				if err := skipLine(r); err != nil && !errors.Is(err, io.EOF) {
					return nil, err
				}
			}
			return nil, &OversizeError{Limit: limit}
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

func skipLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
