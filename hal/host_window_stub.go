//go:build !cgo

package hal

import (
	"context"
	"errors"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	Title string
	Scale int
	TPS   int
}

func RunWindow(_ context.Context, _ HostConfig, _ func(HAL) func() error, _ WindowConfig) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
