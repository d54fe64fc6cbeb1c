package output

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// Opener opens a MIDI output on first use.
type Opener func() (contracts.OutputChannel, error)

// Patch maps operator-facing port names to outputs. Cue targets resolve
// through it, so a DMX port patched where a MIDI output is expected
// surfaces as ErrNotMIDIOutput.
type Patch struct {
	mu    sync.Mutex
	ports map[string]*patchEntry
}

type patchEntry struct {
	kind    contracts.PortKind
	channel contracts.OutputChannel
	open    Opener
}

// NewPatch returns an empty patch.
func NewPatch() *Patch {
	return &Patch{ports: make(map[string]*patchEntry)}
}

// PatchMIDI binds name to an open MIDI output channel.
func (p *Patch) PatchMIDI(name string, ch contracts.OutputChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports[name] = &patchEntry{kind: contracts.MIDIOutputPort, channel: ch}
}

// PatchMIDIOpener binds name to a MIDI output opened by open the first
// time it is resolved.
func (p *Patch) PatchMIDIOpener(name string, open Opener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports[name] = &patchEntry{kind: contracts.MIDIOutputPort, open: open}
}

// PatchPort binds name to a non-MIDI port of the given kind.
func (p *Patch) PatchPort(name string, kind contracts.PortKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports[name] = &patchEntry{kind: kind}
}

// Unpatch removes name.
func (p *Patch) Unpatch(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ports, name)
}

// MIDIOutput resolves name to its MIDI channel, opening it if needed.
func (p *Patch) MIDIOutput(name string) (contracts.OutputChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.ports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnpatched, name)
	}
	if e.kind != contracts.MIDIOutputPort {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotMIDIOutput, name, e.kind)
	}
	if e.channel == nil {
		if e.open == nil {
			return nil, fmt.Errorf("%w: %q has no output", ErrNotMIDIOutput, name)
		}
		ch, err := e.open()
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", name, err)
		}
		e.channel = ch
	}
	return e.channel, nil
}

// Kind returns the kind name is patched as.
func (p *Patch) Kind(name string) (contracts.PortKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.ports[name]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// Names returns the patched port names in order.
func (p *Patch) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.ports))
	for n := range p.ports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every MIDI channel the patch holds open.
func (p *Patch) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, e := range p.ports {
		if e.channel == nil {
			continue
		}
		if err := e.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
		if e.open != nil {
			e.channel = nil
		}
	}
	return errors.Join(errs...)
}
