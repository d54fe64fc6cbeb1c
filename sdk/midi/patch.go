package midi

import (
	"github.com/leandrodaf/stagewire/internal/output"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// Patch maps port names to outputs.
type Patch = output.Patch

var (
	// ErrNotMIDIOutput is returned when a name resolves to a port that is not a MIDI output.
	ErrNotMIDIOutput = output.ErrNotMIDIOutput
	// ErrUnpatched is returned for names missing from the patch.
	ErrUnpatched = output.ErrUnpatched
)

// NewPatch builds a patch from ports. MIDI outputs are opened with opts on
// first use; other kinds only reserve their name.
func NewPatch(ports map[string]contracts.PatchPort, opts ...contracts.Option) *Patch {
	p := output.NewPatch()
	for name, port := range ports {
		if port.Kind != contracts.MIDIOutputPort {
			p.PatchPort(name, port.Kind)
			continue
		}
		cfg := port.Output
		if cfg.Name == "" {
			cfg.Name = name
		}
		p.PatchMIDIOpener(name, func() (contracts.OutputChannel, error) {
			return NewOutputChannel(append(opts[:len(opts):len(opts)], contracts.WithOutputConfig(cfg))...)
		})
	}
	return p
}
