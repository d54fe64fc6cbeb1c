package contracts

import "github.com/leandrodaf/stagewire/sdk/codec"

// CueID identifies an MSC cue (number, list, path).
type CueID = codec.CueID

// MSCCommand is a MIDI Show Control command addressed to one device id.
type MSCCommand struct {
	DeviceID codec.DeviceID      // Receiver id: individual, group or all-call.
	Format   codec.CommandFormat // Equipment category.
	Command  codec.MSCCommand    // Opcode. codec.MSCNone is a no-op.
	Cue      *CueID              // Optional cue; empty list/path use the channel defaults.
}

// Transport writes complete MIDI messages to a wire. An OutputChannel never
// calls Write concurrently.
type Transport interface {
	Write(msg []byte) error
	Close() error
	Name() string
}

// OutputChannel serialises outbound MIDI messages to one device and keeps
// the last value sent per addressable unit for read-back.
type OutputChannel interface {
	SendNoteOn(channel, note, velocity uint8) error
	SendNoteOff(channel, note uint8) error
	SendControlChange(channel, controller, value uint8) error
	SendProgramChange(channel uint8, program uint16) error
	SendSysEx(frame []byte) error
	SendMMC(deviceID codec.DeviceID, command codec.MMCCommand) error
	SendMMCGoto(deviceID codec.DeviceID, ms uint32) error
	SendMSCCommand(cmd MSCCommand) error
	SendAllNotesOff(channel uint8) error

	TrackedNote(channel, note uint8) uint8
	TrackedControl(channel, controller uint8) uint8
	TrackedProgram(channel uint8) uint8

	Name() string
	Close() error
}
