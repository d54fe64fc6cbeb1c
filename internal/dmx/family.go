// Package dmx drives periodic-output lighting devices. A Controller owns a
// set of Devices; each attached Device runs its own worker goroutine that
// pushes the controller's current frame to the wire through a Family.
package dmx

import (
	"context"
	"errors"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

var (
	// ErrUnknownFamily is returned when a descriptor names a class the controller does not know.
	ErrUnknownFamily = errors.New("unknown device family")
	// ErrControllerClosed is returned by operations on a closed controller.
	ErrControllerClosed = errors.New("controller closed")
	// ErrDuplicateDevice is returned when a device id is already attached.
	ErrDuplicateDevice = errors.New("device already attached")
	// ErrUnknownDevice is returned when no device has the given id.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrNotConnected is returned by Transmit before Connect succeeded.
	ErrNotConnected = errors.New("device not connected")
	// ErrBadSetting is returned by Load for malformed settings.
	ErrBadSetting = errors.New("bad device setting")
)

// Family is the wire side of one device: how to open the link and how to
// frame a snapshot onto it.
type Family interface {
	// Connect opens the link. Calling it on an open link is a no-op.
	Connect(ctx context.Context) error
	// Transmit writes one frame. It must not block indefinitely.
	Transmit(frame contracts.Frame) error
	// SupportedUniverses is the number of universes taken from each frame.
	SupportedUniverses() int
	// Save returns the settings needed to recreate the device.
	Save() map[string]string
	// Load applies settings produced by Save.
	Load(settings map[string]string) error
	// Close releases the link. Connect may be called again afterwards.
	Close() error
}

// Descriptor identifies one physical endpoint found by discovery.
type Descriptor struct {
	Class    string
	NativeID string // Stable across discovery runs (serial number, node IP).
	Name     string
	Settings map[string]string
}

// ID is the controller-wide device key.
func (d Descriptor) ID() string { return d.Class + ":" + d.NativeID }

// DeviceClass discovers endpoints of one family and builds their Family.
type DeviceClass interface {
	Name() string
	Discover(ctx context.Context) ([]Descriptor, error)
	New(desc Descriptor) (Family, error)
}
