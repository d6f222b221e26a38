// Package link turns the byte stream from a serial-connected board into
// integer values. The board sends each value as decimal text followed by a
// delimiter, e.g. "142|".
package link

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// DefaultDelimiter ends one transmitted value.
const DefaultDelimiter = '|'

// MaxBuffered bounds the receive buffer; a longer run without a delimiter
// is discarded up to and including the next delimiter.
const MaxBuffered = 256

var (
	ErrEmptyValue = errors.New("link: empty value before delimiter")
	ErrOverflow   = errors.New("link: value exceeds receive buffer")
)

// ParseError reports buffered text that is not an integer.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("link: parse %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// State is the reader's position in the accumulate/flush cycle.
type State uint8

const (
	Accumulating State = iota
	Flushing
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Flushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Stats counts reader activity.
type Stats struct {
	Bytes     uint64 `json:"bytes"`
	Values    uint64 `json:"values"`
	Rejected  uint64 `json:"rejected"`
	LastValue int    `json:"last_value"`
	LastError string `json:"last_error,omitempty"`
}

// Reader accumulates characters until the delimiter and publishes the
// parsed value. It is safe for concurrent use.
type Reader struct {
	delim   byte
	publish func(int)

	mu    sync.Mutex
	buf   []byte
	state State
	stats Stats
	// skipping is set after an overflow until the next delimiter.
	skipping bool
}

// NewReader returns a reader in the Accumulating state with an empty buffer.
// publish is called once per accepted value while the reader lock is held,
// so it must not call back into the reader.
func NewReader(delim byte, publish func(int)) *Reader {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	return &Reader{delim: delim, publish: publish, buf: make([]byte, 0, 16)}
}

// Feed consumes one received chunk. Malformed values are dropped without
// touching the published value; their errors are joined and returned after
// the whole chunk has been scanned.
func (r *Reader) Feed(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, c := range p {
		r.stats.Bytes++
		if c == r.delim {
			if r.skipping {
				r.skipping = false
				continue
			}
			if err := r.flushLocked(); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if r.skipping {
			continue
		}
		if len(r.buf) >= MaxBuffered {
			r.buf = r.buf[:0]
			r.skipping = true
			r.reject(ErrOverflow)
			errs = append(errs, ErrOverflow)
			continue
		}
		r.buf = append(r.buf, c)
	}
	return errors.Join(errs...)
}

func (r *Reader) flushLocked() error {
	r.state = Flushing
	defer func() {
		r.buf = r.buf[:0]
		r.state = Accumulating
	}()

	text := strings.TrimSpace(string(r.buf))
	if text == "" {
		r.reject(ErrEmptyValue)
		return ErrEmptyValue
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		perr := &ParseError{Text: text, Err: err}
		r.reject(perr)
		return perr
	}
	r.stats.Values++
	r.stats.LastValue = v
	if r.publish != nil {
		r.publish(v)
	}
	return nil
}

func (r *Reader) reject(err error) {
	r.stats.Rejected++
	r.stats.LastError = err.Error()
}

// Buffered returns the characters received since the last delimiter.
func (r *Reader) Buffered() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}

func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
