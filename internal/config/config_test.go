package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagewire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "gomidi", cfg.Output.Driver)
	assert.Equal(t, 31250, cfg.Output.Baud)
	assert.Equal(t, 0x7F, cfg.Output.DeviceID)
	assert.Equal(t, time.Second, cfg.DMX.RetransmitInterval)
	assert.Equal(t, 5*time.Second, cfg.Peers.OnlineThreshold)
	assert.Equal(t, "yaml", cfg.Peers.Store.Kind)
	assert.True(t, cfg.DMX.Enttec.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: console
output:
  driver: serial
  port: /dev/ttyUSB1
  cue_list: "3"
dmx:
  universes: 2
  retransmit_interval: 25ms
  artnet:
    nodes:
      - name: stage-left
        address: 10.0.0.50
        universes: 2
        start_universe: 4
peers:
  role: master
  features: [dmx, midi]
  online_threshold: 3s
  store:
    kind: sqlite
    path: /var/lib/stagewire/peers.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	out := cfg.OutputOptions()
	assert.Equal(t, contracts.DriverSerial, out.Driver)
	assert.Equal(t, "/dev/ttyUSB1", out.Port)
	assert.Equal(t, "3", out.DefaultCueList)
	assert.Equal(t, 25*time.Millisecond, cfg.DMXOptions().RetransmitInterval)

	class := cfg.ArtNetClass()
	require.Len(t, class.Nodes, 1)
	assert.Equal(t, uint16(4), class.Nodes[0].StartUniverse)

	features, err := ParseFeatures(cfg.Peers.Features)
	require.NoError(t, err)
	assert.Equal(t, contracts.FeatureDMX|contracts.FeatureMIDI, features)
	assert.Equal(t, "sqlite", cfg.Peers.Store.Kind)
}

func TestLoad_Patch(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
output:
  port: IAC Driver Bus 1
patch:
  fx:
    kind: midi-out
    driver: serial
    port: /dev/ttyUSB2
    cue_list: "7"
  rig:
    kind: dmx
`))
	require.NoError(t, err)

	ports := cfg.PatchPorts()
	require.Len(t, ports, 3)
	assert.Equal(t, contracts.MIDIOutputPort, ports[DefaultPort].Kind)
	assert.Equal(t, "IAC Driver Bus 1", ports[DefaultPort].Output.Port)

	fx := ports["fx"]
	assert.Equal(t, contracts.DriverSerial, fx.Output.Driver)
	assert.Equal(t, "/dev/ttyUSB2", fx.Output.Port)
	assert.Equal(t, "7", fx.Output.DefaultCueList)
	assert.Equal(t, 31250, fx.Output.BaudRate)

	assert.Equal(t, contracts.DMXPort, ports["rig"].Kind)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAGEWIRE_OUTPUT_PORT", "IAC Driver Bus 1")
	t.Setenv("STAGEWIRE_PEERS_ONLINE_THRESHOLD", "10s")

	cfg, err := Load(writeConfig(t, "output:\n  port: ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "IAC Driver Bus 1", cfg.Output.Port)
	assert.Equal(t, 10*time.Second, cfg.Peers.OnlineThreshold)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"driver":   "output:\n  driver: jack\n",
		"device":   "output:\n  device_id: 200\n",
		"store":    "peers:\n  store:\n    kind: etcd\n",
		"feature":  "peers:\n  features: [smoke]\n",
		"interval": "dmx:\n  retransmit_interval: 0s\n",
		"instance": "peers:\n  instance_id: foh-desk\n",
		"patch":    "patch:\n  rig:\n    kind: video\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
