package capture

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"bouncer/hal"
)

// ReplayPorts exposes one recording as a serial port.
type ReplayPorts struct {
	Path string
	// Speed scales playback; values <= 0 mean real time.
	Speed float64
}

var _ hal.Ports = ReplayPorts{}

func (p ReplayPorts) List() ([]string, error) {
	if p.Path == "" {
		return nil, nil
	}
	return []string{p.name()}, nil
}

func (p ReplayPorts) Open(name string, _ int) (hal.Serial, error) {
	if name != p.name() {
		return nil, fmt.Errorf("capture: unknown replay port %q", name)
	}
	r, err := Open(p.Path)
	if err != nil {
		return nil, err
	}
	return newReplaySerial(name, r, p.Speed), nil
}

func (p ReplayPorts) name() string { return "replay:" + filepath.Base(p.Path) }

type replaySerial struct {
	name  string
	r     *Reader
	speed float64
	sleep func(d time.Duration, stop <-chan struct{}) bool

	mu      sync.Mutex
	pending []byte
	lastT   int64
	started bool

	closeOnce sync.Once
	stop      chan struct{}
}

func newReplaySerial(name string, r *Reader, speed float64) *replaySerial {
	if speed <= 0 {
		speed = 1
	}
	return &replaySerial{name: name, r: r, speed: speed, sleep: sleepOrStop, stop: make(chan struct{})}
}

func (s *replaySerial) Name() string { return s.name }

// Read returns recorded chunks, pausing for the recorded gap between them.
// The end of the recording reads as io.EOF, like an unplugged device.
func (s *replaySerial) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		rec, err := s.r.Next()
		if err != nil {
			if s.closed() {
				return 0, io.ErrClosedPipe
			}
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		if s.started && rec.T > s.lastT {
			gap := time.Duration(float64(rec.T-s.lastT) / s.speed)
			if !s.sleep(gap, s.stop) {
				return 0, io.ErrClosedPipe
			}
		}
		s.lastT = rec.T
		s.started = true
		s.pending = rec.Data
	}
	if s.closed() {
		return 0, io.ErrClosedPipe
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *replaySerial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		err = s.r.Close()
		s.mu.Unlock()
	})
	return err
}

func (s *replaySerial) closed() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
