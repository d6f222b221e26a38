package hal

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.bug.st/serial"
)

type systemPorts struct{}

// SystemPorts returns the serial ports attached to this machine.
func SystemPorts() Ports { return systemPorts{} }

func (systemPorts) List() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return names, nil
}

func (systemPorts) Open(name string, baud int) (Serial, error) {
	if baud <= 0 {
		baud = 9600
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &hostSerial{name: name, port: p}, nil
}

type hostSerial struct {
	name   string
	port   serial.Port
	closed atomic.Bool
}

func (s *hostSerial) Name() string { return s.name }

// Read blocks until data arrives. The driver reports an unplugged device
// as a closed port; that case is returned as io.EOF, while a port closed
// through Close returns io.ErrClosedPipe.
func (s *hostSerial) Read(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrNotImplemented
	}
	n, err := s.port.Read(p)
	if err != nil && IsClosed(err) {
		if s.closed.Load() {
			return n, io.ErrClosedPipe
		}
		return n, io.EOF
	}
	return n, err
}

func (s *hostSerial) Close() error {
	if s.port == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.port.Close()
}

// IsClosed reports whether err is a closed-port error.
func IsClosed(err error) bool {
	if errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var pe *serial.PortError
	return errors.As(err, &pe) && pe.Code() == serial.PortClosed
}
