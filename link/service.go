package link

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"bouncer/hal"
	"bouncer/kernel"
)

// Recorder receives every chunk read from the port.
type Recorder interface {
	Record(p []byte) error
}

// Config selects and tunes the serial link.
type Config struct {
	Port      string // empty selects the first discovered port
	Baud      int
	Delimiter byte
	Echo      bool
	Recorder  Recorder
}

// Status is a point-in-time view of the link.
type Status struct {
	Port  string `json:"port,omitempty"`
	Open  bool   `json:"open"`
	State string `json:"state"`
	Stats Stats  `json:"stats"`
}

// Service routes bytes from a HAL serial port through a Reader and posts
// accepted values to the animator endpoint.
type Service struct {
	log   hal.Logger
	ports hal.Ports
	sys   *kernel.System
	cfg   Config

	reader *Reader

	mu   sync.Mutex
	port hal.Serial
	open bool
	done chan struct{}
}

// NewService creates a link service. Nothing is opened until Start.
func NewService(log hal.Logger, ports hal.Ports, sys *kernel.System, cfg Config) *Service {
	if cfg.Baud <= 0 {
		cfg.Baud = 9600
	}
	s := &Service{log: log, ports: ports, sys: sys, cfg: cfg}
	s.reader = NewReader(cfg.Delimiter, func(v int) {
		sys.SendInt(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkValue, int64(v))
	})
	return s
}

// Reader exposes the service's reader.
func (s *Service) Reader() *Reader { return s.reader }

// Start discovers ports, opens the configured one and starts the read loop.
// It returns hal.ErrNoPorts when discovery finds nothing.
func (s *Service) Start() error {
	if s.ports == nil {
		return hal.ErrNoPorts
	}
	names, err := s.ports.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return hal.ErrNoPorts
	}

	s.log.WriteLineString("Available ports are...")
	for i, name := range names {
		s.log.WriteLineString(fmt.Sprintf("%d. %s", i, name))
	}

	name := names[0]
	if s.cfg.Port != "" {
		name = s.cfg.Port
	}
	port, err := s.ports.Open(name, s.cfg.Baud)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}

	s.mu.Lock()
	s.port = port
	s.open = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.log.WriteLineString(fmt.Sprintf("serial port %s was opened (%d baud)", port.Name(), s.cfg.Baud))
	go s.readLoop(port, done)
	return nil
}

// Inject feeds bytes as if they had arrived on the port.
func (s *Service) Inject(p []byte) error {
	return s.reader.Feed(p)
}

func (s *Service) Status() Status {
	s.mu.Lock()
	st := Status{Open: s.open}
	if s.port != nil {
		st.Port = s.port.Name()
	}
	s.mu.Unlock()
	st.State = s.reader.State().String()
	st.Stats = s.reader.Stats()
	return st
}

// Close closes the port and waits for the read loop to exit.
func (s *Service) Close() error {
	s.mu.Lock()
	port := s.port
	done := s.done
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	err := port.Close()
	if done != nil {
		<-done
	}
	return err
}

func (s *Service) readLoop(port hal.Serial, done chan struct{}) {
	defer close(done)
	defer s.markClosed()

	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			s.handle(buf[:n])
		}
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, io.ErrClosedPipe):
		case errors.Is(err, io.EOF):
			s.log.WriteLineString(fmt.Sprintf("serial port %s was removed from system", port.Name()))
			s.sys.Send(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkClosed, []byte("removed"))
		default:
			s.log.WriteLineString(fmt.Sprintf("serial port (%s) encountered error: %v", port.Name(), err))
			s.sys.Send(kernel.EPLink, kernel.EPAnimator, kernel.MsgLinkClosed, []byte(err.Error()))
		}
		return
	}
}

func (s *Service) handle(chunk []byte) {
	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.Record(chunk); err != nil {
			s.log.WriteLineString("link: record: " + err.Error())
		}
	}
	if s.cfg.Echo {
		s.log.WriteLineString("rx " + strconv.Quote(string(chunk)))
	}
	if err := s.reader.Feed(chunk); err != nil {
		s.log.WriteLineString(err.Error())
	}
}

func (s *Service) markClosed() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}
