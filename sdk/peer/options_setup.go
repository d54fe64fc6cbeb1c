package peer

import (
	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// applyDefaultOptions sets default values for Options if not explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) contracts.Options {
	options := &contracts.Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.Peers == nil {
		options.Peers = &contracts.PeerConfig{}
	}
	if options.Peers.Clock == nil {
		options.Peers.Clock = contracts.SystemClock{}
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options
}
