// Package config loads the stagewire configuration from a YAML file and
// STAGEWIRE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leandrodaf/stagewire/internal/dmx"
	"github.com/leandrodaf/stagewire/internal/peer"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Output  OutputConfig  `mapstructure:"output"`
	DMX     DMXConfig     `mapstructure:"dmx"`
	Peers   PeersConfig   `mapstructure:"peers"`
	// Patch names extra ports. The output section is always patched as
	// DefaultPort unless Patch overrides that name.
	Patch map[string]PatchConfig `mapstructure:"patch"`
}

// DefaultPort is the patch name of the output section.
const DefaultPort = "default"

// PatchConfig is one named port. Output fields apply to MIDI ports only.
type PatchConfig struct {
	Kind         string `mapstructure:"kind"` // midi-out, dmx or serial.
	OutputConfig `mapstructure:",squash"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // Empty disables the endpoint.
}

type OutputConfig struct {
	Name     string `mapstructure:"name"`
	Driver   string `mapstructure:"driver"`
	Port     string `mapstructure:"port"`
	Baud     int    `mapstructure:"baud"`
	CueList  string `mapstructure:"cue_list"`
	CuePath  string `mapstructure:"cue_path"`
	DeviceID int    `mapstructure:"device_id"` // MSC/MMC target used by the CLI.
}

type DMXConfig struct {
	Universes          int           `mapstructure:"universes"`
	RetransmitInterval time.Duration `mapstructure:"retransmit_interval"`
	RescanInterval     time.Duration `mapstructure:"rescan_interval"`
	ArtNet             ArtNetConfig  `mapstructure:"artnet"`
	Enttec             EnttecConfig  `mapstructure:"enttec"`
}

type ArtNetConfig struct {
	Nodes         []ArtNetNodeConfig `mapstructure:"nodes"`
	Broadcast     string             `mapstructure:"broadcast"`
	PollTimeout   time.Duration      `mapstructure:"poll_timeout"`
	PollUniverses int                `mapstructure:"poll_universes"`
}

type ArtNetNodeConfig struct {
	Name          string `mapstructure:"name"`
	Address       string `mapstructure:"address"`
	Universes     int    `mapstructure:"universes"`
	StartUniverse uint16 `mapstructure:"start_universe"`
}

type EnttecConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PeersConfig struct {
	InstanceID       string        `mapstructure:"instance_id"` // Generated when empty.
	Role             string        `mapstructure:"role"`
	Features         []string      `mapstructure:"features"`
	OnlineThreshold  time.Duration `mapstructure:"online_threshold"`
	Listen           string        `mapstructure:"listen"`
	AnnounceTarget   string        `mapstructure:"announce_target"`
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`
	Store            StoreConfig   `mapstructure:"store"`
}

type StoreConfig struct {
	Kind string `mapstructure:"kind"` // "yaml", "sqlite" or "none".
	Path string `mapstructure:"path"`
}

// Load reads configPath, or stagewire.yaml from the usual locations when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stagewire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stagewire")
	}

	// Environment variable support: STAGEWIRE_OUTPUT_PORT=/dev/ttyUSB0
	v.SetEnvPrefix("STAGEWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("metrics.listen", "")
	v.SetDefault("output.name", "")
	v.SetDefault("output.driver", string(contracts.DriverGoMIDI))
	v.SetDefault("output.port", "")
	v.SetDefault("output.baud", 31250)
	v.SetDefault("output.cue_list", "")
	v.SetDefault("output.cue_path", "")
	v.SetDefault("output.device_id", 0x7F)
	v.SetDefault("dmx.universes", 1)
	v.SetDefault("dmx.retransmit_interval", "1s")
	v.SetDefault("dmx.rescan_interval", "5s")
	v.SetDefault("dmx.artnet.broadcast", "")
	v.SetDefault("dmx.artnet.poll_timeout", "0s")
	v.SetDefault("dmx.artnet.poll_universes", 1)
	v.SetDefault("dmx.enttec.enabled", true)
	v.SetDefault("peers.instance_id", "")
	v.SetDefault("peers.role", "client")
	v.SetDefault("peers.features", []string{})
	v.SetDefault("peers.online_threshold", "5s")
	v.SetDefault("peers.listen", ":7400")
	v.SetDefault("peers.announce_target", "255.255.255.255:7400")
	v.SetDefault("peers.announce_interval", "2s")
	v.SetDefault("peers.store.kind", "yaml")
	v.SetDefault("peers.store.path", "./peers.yaml")
}

// Validate rejects values the runtime cannot use.
func (c *Config) Validate() error {
	switch contracts.OutputDriver(c.Output.Driver) {
	case contracts.DriverGoMIDI, contracts.DriverNative, contracts.DriverSerial, contracts.DriverFile:
	default:
		return fmt.Errorf("output.driver: unknown driver %q", c.Output.Driver)
	}
	if c.Output.DeviceID < 0 || c.Output.DeviceID > 0x7F {
		return fmt.Errorf("output.device_id: %d out of range [0,127]", c.Output.DeviceID)
	}
	if c.DMX.Universes < 1 {
		return fmt.Errorf("dmx.universes: must be at least 1, got %d", c.DMX.Universes)
	}
	if c.DMX.RetransmitInterval <= 0 {
		return fmt.Errorf("dmx.retransmit_interval: must be positive")
	}
	if c.DMX.RescanInterval <= 0 {
		return fmt.Errorf("dmx.rescan_interval: must be positive")
	}
	if c.Peers.OnlineThreshold <= 0 {
		return fmt.Errorf("peers.online_threshold: must be positive")
	}
	for name, pc := range c.Patch {
		switch contracts.PortKind(pc.Kind) {
		case contracts.MIDIOutputPort:
			switch contracts.OutputDriver(pc.Driver) {
			case "", contracts.DriverGoMIDI, contracts.DriverNative, contracts.DriverSerial, contracts.DriverFile:
			default:
				return fmt.Errorf("patch.%s.driver: unknown driver %q", name, pc.Driver)
			}
		case contracts.DMXPort, contracts.SerialPort:
		default:
			return fmt.Errorf("patch.%s.kind: unknown port kind %q", name, pc.Kind)
		}
	}
	if c.Peers.InstanceID != "" && !peer.ValidInstanceID(c.Peers.InstanceID) {
		return fmt.Errorf("peers.instance_id: %q is not a UUID", c.Peers.InstanceID)
	}
	switch c.Peers.Store.Kind {
	case "yaml", "sqlite", "none":
	default:
		return fmt.Errorf("peers.store.kind: unknown store %q", c.Peers.Store.Kind)
	}
	if _, err := ParseFeatures(c.Peers.Features); err != nil {
		return fmt.Errorf("peers.features: %w", err)
	}
	return nil
}

// OutputOptions converts the output section.
func (c *Config) OutputOptions() contracts.OutputConfig {
	return c.Output.Options()
}

// Options converts o into SDK output options.
func (o OutputConfig) Options() contracts.OutputConfig {
	return contracts.OutputConfig{
		Name:           o.Name,
		Driver:         contracts.OutputDriver(o.Driver),
		Port:           o.Port,
		BaudRate:       o.Baud,
		DefaultCueList: o.CueList,
		DefaultCuePath: o.CuePath,
	}
}

// PatchPorts returns the patch with the output section under DefaultPort.
func (c *Config) PatchPorts() map[string]contracts.PatchPort {
	ports := map[string]contracts.PatchPort{
		DefaultPort: {Kind: contracts.MIDIOutputPort, Output: c.OutputOptions()},
	}
	for name, pc := range c.Patch {
		port := contracts.PatchPort{Kind: contracts.PortKind(pc.Kind)}
		if port.Kind == contracts.MIDIOutputPort {
			out := pc.OutputConfig
			if out.Driver == "" {
				out.Driver = c.Output.Driver
			}
			if out.Baud == 0 {
				out.Baud = c.Output.Baud
			}
			port.Output = out.Options()
		}
		ports[name] = port
	}
	return ports
}

// DMXOptions converts the dmx section.
func (c *Config) DMXOptions() contracts.DMXConfig {
	return contracts.DMXConfig{
		RetransmitInterval: c.DMX.RetransmitInterval,
		RescanInterval:     c.DMX.RescanInterval,
	}
}

// ArtNetClass builds the Art-Net device class from the configured nodes.
func (c *Config) ArtNetClass() *dmx.ArtNetClass {
	nodes := make([]dmx.ArtNetNode, 0, len(c.DMX.ArtNet.Nodes))
	for _, n := range c.DMX.ArtNet.Nodes {
		nodes = append(nodes, dmx.ArtNetNode{
			Name:          n.Name,
			Address:       n.Address,
			Universes:     n.Universes,
			StartUniverse: n.StartUniverse,
		})
	}
	return &dmx.ArtNetClass{
		Nodes:       nodes,
		Broadcast:   c.DMX.ArtNet.Broadcast,
		PollTimeout: c.DMX.ArtNet.PollTimeout,
		Universes:   c.DMX.ArtNet.PollUniverses,
	}
}

var featureNames = map[string]contracts.Features{
	"audio":    contracts.FeatureAudio,
	"video":    contracts.FeatureVideo,
	"dmx":      contracts.FeatureDMX,
	"midi":     contracts.FeatureMIDI,
	"timecode": contracts.FeatureTimecode,
}

// ParseFeatures maps feature names to the announce bitset.
func ParseFeatures(names []string) (contracts.Features, error) {
	var f contracts.Features
	for _, n := range names {
		bit, ok := featureNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", n)
		}
		f |= bit
	}
	return f, nil
}
