package contracts

import "fmt"

// UniverseSize is the number of channels in one DMX-512 universe.
const UniverseSize = 512

// Universe holds one level per DMX channel.
type Universe [UniverseSize]byte

// Frame is a snapshot of every universe a controller wants on the wire.
// Devices read it and never modify it.
type Frame struct {
	Universes []Universe
}

// Universe returns universe i, or a blackout universe when the frame has
// fewer universes than the device supports.
func (f Frame) Universe(i int) Universe {
	if i < 0 || i >= len(f.Universes) {
		return Universe{}
	}
	return f.Universes[i]
}

// FrameSource provides consistent frame snapshots. Implementations must be
// safe to call concurrently with whatever mutates the underlying state.
type FrameSource interface {
	CurrentFrame() Frame
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func() Frame

// CurrentFrame calls f.
func (f FrameSourceFunc) CurrentFrame() Frame { return f() }

// ConnectionState is the lifecycle state of an output device.
type ConnectionState int32

const (
	// StateIdle means no controller is attached and no worker runs.
	StateIdle ConnectionState = iota
	// StateConnecting means the worker runs but Connect has not succeeded yet.
	StateConnecting
	// StateConnected means frames are being pushed to the wire.
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
