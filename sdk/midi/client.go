package midi

import (
	"fmt"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/internal/output"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// NewOutputChannel opens the configured transport and wraps it in an
// output channel.
//
// opts ...contracts.Option: A variadic list of option functions; WithOutputConfig selects driver and port.
//
// Returns:
//   - contracts.OutputChannel: The ready-to-use channel.
//   - error: Unknown drivers and unopenable ports.
func NewOutputChannel(opts ...contracts.Option) (contracts.OutputChannel, error) {
	options := applyDefaultOptions(opts...)

	transport, err := OpenTransport(options.Output, options.Logger)
	if err != nil {
		return nil, err
	}
	ch, err := newChannel(transport, options)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// NewOutputChannelWithTransport wraps an already open transport.
func NewOutputChannelWithTransport(t contracts.Transport, opts ...contracts.Option) (contracts.OutputChannel, error) {
	ch, err := newChannel(t, applyDefaultOptions(opts...))
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func newChannel(t contracts.Transport, options contracts.Options) (*output.Channel, error) {
	m, err := metrics.New(options.Registerer)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	ch := output.NewChannel(t, output.Config{
		Name:           options.Output.Name,
		DefaultCueList: options.Output.DefaultCueList,
		DefaultCuePath: options.Output.DefaultCuePath,
	}, options.Logger, m)

	options.Logger.Info("MIDI output ready",
		options.Logger.Field().String("output", ch.Name()),
		options.Logger.Field().String("driver", string(options.Output.Driver)))
	return ch, nil
}
