package dmx

import (
	"github.com/leandrodaf/stagewire/internal/dmx"
	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// DefaultRescanInterval is the discovery period used by Run when unset.
const DefaultRescanInterval = 5 * dmx.DefaultRetransmitInterval

// applyDefaultOptions sets default values for Options if not explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) contracts.Options {
	options := &contracts.Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.DMX == nil {
		options.DMX = &contracts.DMXConfig{}
	}
	if options.DMX.RetransmitInterval <= 0 {
		options.DMX.RetransmitInterval = dmx.DefaultRetransmitInterval
	}
	if options.DMX.RescanInterval <= 0 {
		options.DMX.RescanInterval = DefaultRescanInterval
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options
}
