// Package output serialises MIDI messages onto a single wire transport and
// remembers the last value sent per addressable unit.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

var (
	// ErrOutOfRange is returned when a numeric argument exceeds its protocol maximum.
	ErrOutOfRange = errors.New("protocol parameter out of range")
	// ErrInvalidSysEx is returned for frames that are not F0 ... F7 with 7-bit data.
	ErrInvalidSysEx = errors.New("invalid sysex frame")
	// ErrFrameTooLong is returned for frames longer than codec.MaxSysExLength.
	ErrFrameTooLong = errors.New("sysex frame exceeds maximum wire length")
	// ErrClosed is returned when sending on a closed channel.
	ErrClosed = errors.New("output channel closed")
	// ErrNotMIDIOutput is returned when a patched port is not a MIDI output.
	ErrNotMIDIOutput = errors.New("patched port is not a MIDI output")
	// ErrUnpatched is returned for port names missing from the patch.
	ErrUnpatched = errors.New("port is not patched")
)

// Transport writes complete MIDI messages to a wire.
type Transport = contracts.Transport

// WriterTransport sends raw MIDI bytes to an io.WriteCloser such as a file
// or a character device.
type WriterTransport struct {
	name string
	w    io.WriteCloser
}

// NewWriterTransport wraps w.
func NewWriterTransport(name string, w io.WriteCloser) *WriterTransport {
	return &WriterTransport{name: name, w: w}
}

// OpenFile opens path for writing, creating it when it does not exist.
func OpenFile(path string) (*WriterTransport, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open midi file %q: %w", path, err)
	}
	return NewWriterTransport(path, f), nil
}

// Write writes msg in full.
func (t *WriterTransport) Write(msg []byte) error {
	return writeFull(t.w, msg)
}

// Close closes the underlying writer.
func (t *WriterTransport) Close() error { return t.w.Close() }

// Name returns the transport label.
func (t *WriterTransport) Name() string { return t.name }

func writeFull(w io.Writer, msg []byte) error {
	for len(msg) > 0 {
		n, err := w.Write(msg)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		msg = msg[n:]
	}
	return nil
}
