package dmx

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// FrameBuffer is a FrameSource the scheduler writes levels into. Readers
// always get a private copy.
type FrameBuffer struct {
	mu        sync.RWMutex
	universes []contracts.Universe
}

// NewFrameBuffer creates a blacked-out buffer of n universes.
func NewFrameBuffer(n int) *FrameBuffer {
	if n < 1 {
		n = 1
	}
	return &FrameBuffer{universes: make([]contracts.Universe, n)}
}

// Set sets one channel (0-based) of one universe.
func (b *FrameBuffer) Set(universe, channel int, level byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if universe < 0 || universe >= len(b.universes) {
		return fmt.Errorf("universe %d out of range [0,%d)", universe, len(b.universes))
	}
	if channel < 0 || channel >= contracts.UniverseSize {
		return fmt.Errorf("channel %d out of range [0,%d)", channel, contracts.UniverseSize)
	}
	b.universes[universe][channel] = level
	return nil
}

// SetUniverse replaces a whole universe.
func (b *FrameBuffer) SetUniverse(universe int, levels contracts.Universe) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if universe < 0 || universe >= len(b.universes) {
		return fmt.Errorf("universe %d out of range [0,%d)", universe, len(b.universes))
	}
	b.universes[universe] = levels
	return nil
}

// Blackout zeroes every channel.
func (b *FrameBuffer) Blackout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.universes {
		b.universes[i] = contracts.Universe{}
	}
}

// CurrentFrame returns a copy of the buffer.
func (b *FrameBuffer) CurrentFrame() contracts.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return contracts.Frame{Universes: append([]contracts.Universe(nil), b.universes...)}
}
