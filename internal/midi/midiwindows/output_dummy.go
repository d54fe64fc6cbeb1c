//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// ErrUnavailable is returned on systems without winmm.
var ErrUnavailable = errors.New("winmm MIDI output is not available on this platform")

// Output is a placeholder for non-Windows builds.
type Output struct{}

// ListOutputs reports that winmm is unavailable.
func ListOutputs() ([]contracts.DeviceInfo, error) {
	return nil, ErrUnavailable
}

// Open logs a warning and reports that winmm is unavailable.
func Open(name string, logger contracts.Logger) (*Output, error) {
	logger.Warn("winmm output requested on non-Windows system", logger.Field().String("device", name))
	return nil, ErrUnavailable
}

// Write always fails.
func (o *Output) Write(msg []byte) error { return ErrUnavailable }

// Close is a no-op.
func (o *Output) Close() error { return nil }

// Name returns an empty name.
func (o *Output) Name() string { return "" }
