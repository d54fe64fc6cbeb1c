package midi

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
	if options.Output == nil {
		options.Output = &contracts.OutputConfig{}
	}
	if options.Output.Driver == "" {
		options.Output.Driver = contracts.DriverGoMIDI
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options
}
