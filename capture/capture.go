// Package capture records link traffic as zstd-compressed JSON lines and
// plays recordings back through the hal.Ports interface.
package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record is one received chunk.
type Record struct {
	T    int64  `json:"t"`
	Data []byte `json:"data"`
}

// Writer appends records to a .jsonl.zst file.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	now func() time.Time
}

// Create opens path for writing, truncating any previous recording.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

// NewWriter writes records to dst. Close flushes the stream but leaves
// dst open.
func NewWriter(dst io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &Writer{enc: enc, w: bufio.NewWriterSize(enc, 32*1024), now: time.Now}, nil
}

// Record writes one chunk stamped with the current time.
func (w *Writer) Record(p []byte) error {
	return w.RecordAt(w.now(), p)
}

// RecordAt writes one chunk stamped with t. Replay only uses the gaps
// between stamps, so t need not be wall-clock time.
func (w *Writer) RecordAt(t time.Time, p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return os.ErrClosed
	}
	b, err := json.Marshal(Record{T: t.UnixNano(), Data: p})
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	var errs []error
	errs = append(errs, w.w.Flush())
	errs = append(errs, w.enc.Close())
	if w.f != nil {
		errs = append(errs, w.f.Close())
		w.f = nil
	}
	w.w = nil
	w.enc = nil
	return errors.Join(errs...)
}

// Reader decodes records from a .jsonl.zst stream.
type Reader struct {
	dec *zstd.Decoder
	sc  *bufio.Scanner
	c   io.Closer
}

// Open opens a recording file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

func NewReader(src io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{dec: dec, sc: sc}, nil
}

// Next returns the next record, or io.EOF at the end of the recording.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("capture: decode record: %w", err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("capture: %w", err)
	}
	return Record{}, io.EOF
}

func (r *Reader) Close() error {
	r.dec.Close()
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
