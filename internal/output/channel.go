package output

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/codec"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

const (
	numChannels = codec.MaxChannel + 1
	numData     = codec.MaxData + 1
)

// Compile-time interface guard.
var _ contracts.OutputChannel = (*Channel)(nil)

// Channel is one MIDI output. All writes and all tracked state go through a
// single mutex, so callers on different goroutines never interleave bytes
// of two messages.
type Channel struct {
	name        string
	logger      contracts.Logger
	metrics     *metrics.Metrics
	defaultList string
	defaultPath string

	mu        sync.Mutex
	transport Transport
	closed    bool
	notes     [numChannels][numData]uint8
	controls  [numChannels][numData]uint8
	programs  [numChannels]uint8
}

// Config holds the per-channel settings.
type Config struct {
	Name           string
	DefaultCueList string
	DefaultCuePath string
}

// NewChannel creates a channel writing to t.
func NewChannel(t Transport, cfg Config, logger contracts.Logger, m *metrics.Metrics) *Channel {
	name := cfg.Name
	if name == "" {
		name = t.Name()
	}
	return &Channel{
		name:        name,
		logger:      logger.With(logger.Field().String("output", name)),
		metrics:     m,
		defaultList: cfg.DefaultCueList,
		defaultPath: cfg.DefaultCuePath,
		transport:   t,
	}
}

// Name returns the channel label.
func (c *Channel) Name() string { return c.name }

// SendNoteOn sends a note-on and records velocity as the note status.
func (c *Channel) SendNoteOn(channel, note, velocity uint8) error {
	if err := checkRange("channel", int(channel), codec.MaxChannel); err != nil {
		return err
	}
	if err := checkRange("note", int(note), codec.MaxData); err != nil {
		return err
	}
	if err := checkRange("velocity", int(velocity), codec.MaxData); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.write(codec.KindNoteOn, codec.NoteOn(channel, note, velocity)) {
		c.notes[channel][note] = velocity & 0x7F
	}
	return c.closedErr()
}

// SendNoteOff sends a note-off and clears the note status.
func (c *Channel) SendNoteOff(channel, note uint8) error {
	if err := checkRange("channel", int(channel), codec.MaxChannel); err != nil {
		return err
	}
	if err := checkRange("note", int(note), codec.MaxData); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.write(codec.KindNoteOff, codec.NoteOff(channel, note)) {
		c.notes[channel][note] = 0
	}
	return c.closedErr()
}

// SendControlChange sends a control change and records the value.
func (c *Channel) SendControlChange(channel, controller, value uint8) error {
	if err := checkRange("channel", int(channel), codec.MaxChannel); err != nil {
		return err
	}
	if err := checkRange("controller", int(controller), codec.MaxData); err != nil {
		return err
	}
	if err := checkRange("value", int(value), codec.MaxData); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.write(codec.KindControlChange, codec.ControlChange(channel, controller, value)) {
		c.controls[channel][controller] = value & 0x7F
	}
	return c.closedErr()
}

// SendProgramChange sends a program change. Programs 128-255 are accepted
// and wrap to the 7-bit data range on the wire.
func (c *Channel) SendProgramChange(channel uint8, program uint16) error {
	if err := checkRange("channel", int(channel), codec.MaxChannel); err != nil {
		return err
	}
	if err := checkRange("program", int(program), codec.MaxProgram); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.write(codec.KindProgramChange, codec.ProgramChange(channel, program)) {
		c.programs[channel] = uint8(program) & 0x7F
	}
	return c.closedErr()
}

// SendSysEx sends a complete F0 ... F7 frame.
func (c *Channel) SendSysEx(frame []byte) error {
	if err := checkSysEx(frame); err != nil {
		return err
	}
	return c.sendFrame(frame)
}

// SendMMC sends an MMC transport command.
func (c *Channel) SendMMC(deviceID codec.DeviceID, command codec.MMCCommand) error {
	return c.sendFrame(codec.EncodeMMC(deviceID, command))
}

// SendMMCGoto sends an MMC locate to ms.
func (c *Channel) SendMMCGoto(deviceID codec.DeviceID, ms uint32) error {
	return c.sendFrame(codec.EncodeMMCGoto(deviceID, ms))
}

// SendMSCCommand sends an MSC command. codec.MSCNone sends nothing.
func (c *Channel) SendMSCCommand(cmd contracts.MSCCommand) error {
	frame := codec.EncodeMSC(cmd.DeviceID, cmd.Format, cmd.Command, cmd.Cue, c.defaultList, c.defaultPath)
	if len(frame) == 0 {
		c.logger.Debug("MSC no-op command suppressed",
			c.logger.Field().Uint8("device_id", uint8(cmd.DeviceID)))
		return nil
	}
	return c.sendFrame(frame)
}

// SendAllNotesOff sends a note-off for every note of channel, one message
// at a time. A note-on from another goroutine can land between two of
// these messages and stay tracked as sounding.
func (c *Channel) SendAllNotesOff(channel uint8) error {
	if err := checkRange("channel", int(channel), codec.MaxChannel); err != nil {
		return err
	}
	for note := 0; note < numData; note++ {
		if err := c.SendNoteOff(channel, uint8(note)); err != nil {
			return err
		}
	}
	return nil
}

// TrackedNote returns the last velocity sent for note, 0 when off.
func (c *Channel) TrackedNote(channel, note uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes[channel&0x0F][note&0x7F]
}

// TrackedControl returns the last value sent for controller.
func (c *Channel) TrackedControl(channel, controller uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls[channel&0x0F][controller&0x7F]
}

// TrackedProgram returns the last program sent on channel.
func (c *Channel) TrackedProgram(channel uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.programs[channel&0x0F]
}

// Close closes the transport. Later sends return ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.name, err)
	}
	c.logger.Info("MIDI output closed")
	return nil
}

func (c *Channel) sendFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(codec.KindSystem, frame)
	return c.closedErr()
}

// write hands msg to the transport and reports whether it went out.
// Transport failures are logged, never returned. Callers hold c.mu.
func (c *Channel) write(kind codec.MessageKind, msg []byte) bool {
	if c.closed {
		return false
	}
	if err := c.transport.Write(msg); err != nil {
		c.metrics.MIDIWriteError(c.name)
		c.logger.Warn("MIDI write failed",
			c.logger.Field().String("kind", kind.String()),
			c.logger.Field().Bytes("message", msg),
			c.logger.Field().Error("error", err))
		return false
	}
	c.metrics.MIDISent(c.name, kind.String())
	return true
}

func (c *Channel) closedErr() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

func checkRange(field string, v, max int) error {
	if v > max {
		return fmt.Errorf("%w: %s %d exceeds %d", ErrOutOfRange, field, v, max)
	}
	return nil
}

func checkSysEx(frame []byte) error {
	if len(frame) > codec.MaxSysExLength {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(frame))
	}
	if len(frame) < 2 || frame[0] != 0xF0 || frame[len(frame)-1] != 0xF7 {
		return fmt.Errorf("%w: missing F0/F7 framing", ErrInvalidSysEx)
	}
	for i, b := range frame[1 : len(frame)-1] {
		if b > codec.MaxData {
			return fmt.Errorf("%w: data byte 0x%02X at offset %d", ErrInvalidSysEx, b, i+1)
		}
	}
	return nil
}
