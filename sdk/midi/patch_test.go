package midi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/codec"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewPatch(t *testing.T) {
	dir := t.TempDir()
	sound := filepath.Join(dir, "sound.syx")

	p := NewPatch(map[string]contracts.PatchPort{
		"sound": {Kind: contracts.MIDIOutputPort, Output: contracts.OutputConfig{Driver: contracts.DriverFile, Port: sound}},
		"rig":   {Kind: contracts.DMXPort},
	}, contracts.WithLogger(logger.New(zaptest.NewLogger(t))))

	_, err := os.Stat(sound)
	assert.True(t, os.IsNotExist(err), "outputs open on first use")

	out, err := p.MIDIOutput("sound")
	require.NoError(t, err)
	assert.Equal(t, "sound", out.Name())
	require.NoError(t, out.SendMMC(codec.AllCall, codec.MMCStop))

	_, err = p.MIDIOutput("rig")
	assert.ErrorIs(t, err, ErrNotMIDIOutput)
	_, err = p.MIDIOutput("lx")
	assert.ErrorIs(t, err, ErrUnpatched)

	require.NoError(t, p.CloseAll())
	data, err := os.ReadFile(sound)
	require.NoError(t, err)
	assert.Equal(t, codec.EncodeMMC(codec.AllCall, codec.MMCStop), data)
}
