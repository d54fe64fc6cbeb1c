package contracts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutputDriver names the wire transport behind an OutputChannel.
type OutputDriver string

const (
	// DriverGoMIDI opens a port through the registered gomidi driver.
	DriverGoMIDI OutputDriver = "gomidi"
	// DriverNative talks to the OS MIDI API directly (winmm, CoreMIDI).
	DriverNative OutputDriver = "native"
	// DriverSerial writes raw MIDI bytes to a serial line. BaudRate defaults to 31250.
	DriverSerial OutputDriver = "serial"
	// DriverFile writes raw MIDI bytes to a file or device node.
	DriverFile OutputDriver = "file"
)

// OutputConfig configures a MIDI output channel.
type OutputConfig struct {
	Name           string       // Label used in logs and metrics.
	Driver         OutputDriver // Transport family.
	Port           string       // Port name, serial device or file path.
	BaudRate       int          // Serial baud rate.
	DefaultCueList string       // MSC cue list used when a cue omits it.
	DefaultCuePath string       // MSC cue path used when a cue omits it.
}

// DMXConfig configures a DMX controller.
type DMXConfig struct {
	RetransmitInterval time.Duration // Default worker wake-up period.
	RescanInterval     time.Duration // Period of hardware rediscovery.
}

// PeerConfig configures a peer registry.
type PeerConfig struct {
	Clock    Clock    // Time source; SystemClock when nil.
	Resolver Resolver // Hostname/MAC lookups; nil disables resolution.
}

// Options holds the configuration shared by the SDK constructors.
type Options struct {
	Logger     Logger                // Logger for events and errors.
	LogLevel   LogLevel              // Level of logging to use.
	Registerer prometheus.Registerer // Metrics registry; metrics are off when nil.
	Output     *OutputConfig
	DMX        *DMXConfig
	Peers      *PeerConfig
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithMetrics registers collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(opts *Options) {
		opts.Registerer = reg
	}
}

// WithOutputConfig sets the MIDI output configuration.
func WithOutputConfig(cfg OutputConfig) Option {
	return func(opts *Options) {
		opts.Output = &cfg
	}
}

// WithDMXConfig sets the DMX controller configuration.
func WithDMXConfig(cfg DMXConfig) Option {
	return func(opts *Options) {
		opts.DMX = &cfg
	}
}

// WithPeerConfig sets the peer registry configuration.
func WithPeerConfig(cfg PeerConfig) Option {
	return func(opts *Options) {
		opts.Peers = &cfg
	}
}
