// Package dmx is the public entry point to the DMX output layer.
package dmx

import (
	"context"
	"fmt"

	"github.com/leandrodaf/stagewire/internal/dmx"
	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

type (
	Controller  = dmx.Controller
	Device      = dmx.Device
	Descriptor  = dmx.Descriptor
	Family      = dmx.Family
	DeviceClass = dmx.DeviceClass
	FrameBuffer = dmx.FrameBuffer
	ArtNetClass = dmx.ArtNetClass
	ArtNetNode  = dmx.ArtNetNode
	EnttecClass = dmx.EnttecClass
)

// NewFrameBuffer creates a blacked-out frame buffer of n universes.
func NewFrameBuffer(n int) *FrameBuffer { return dmx.NewFrameBuffer(n) }

// NewController creates a controller that transmits frames from source.
//
// opts ...contracts.Option: WithDMXConfig sets the retransmit interval; WithMetrics enables collectors.
//
// Returns:
//   - *Controller: The controller; call Close to stop every device.
//   - error: If metrics registration fails.
func NewController(source contracts.FrameSource, opts ...contracts.Option) (*Controller, error) {
	options := applyDefaultOptions(opts...)

	m, err := metrics.New(options.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return dmx.NewController(source, options.DMX.RetransmitInterval, options.Logger, m), nil
}

// RunDiscovery registers classes on c and rescans until ctx is done, at
// the configured rescan interval.
func RunDiscovery(ctx context.Context, c *Controller, classes []DeviceClass, opts ...contracts.Option) {
	options := applyDefaultOptions(opts...)
	for _, class := range classes {
		c.RegisterClass(class)
	}
	c.Run(ctx, options.DMX.RescanInterval)
}
