//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// ErrUnavailable is returned on systems without CoreMIDI.
var ErrUnavailable = errors.New("CoreMIDI output is not available on this platform")

type Output struct{}

func ListOutputs() ([]contracts.DeviceInfo, error) {
	return nil, ErrUnavailable
}

func Open(name, clientName string, logger contracts.Logger) (*Output, error) {
	logger.Warn("CoreMIDI output requested on non-macOS system", logger.Field().String("device", name))
	return nil, ErrUnavailable
}

func (o *Output) Write(msg []byte) error { return ErrUnavailable }

func (o *Output) Close() error { return nil }

func (o *Output) Name() string { return "" }
