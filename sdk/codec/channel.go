// Package codec encodes and decodes MIDI wire messages: channel voice
// messages, MIDI Show Control and MIDI Machine Control SysEx frames.
//
// Everything in this package is pure and safe for concurrent use.
package codec

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

const (
	dataMask    = 0x7F
	channelMask = 0x0F
	kindMask    = 0xF0
)

// Protocol maxima for channel voice messages.
const (
	MaxChannel = 15
	MaxData    = 127
	MaxProgram = 255
)

// MessageKind is the top nibble of a channel status byte.
type MessageKind uint8

const (
	KindNoteOff         MessageKind = 0x80
	KindNoteOn          MessageKind = 0x90
	KindPolyPressure    MessageKind = 0xA0
	KindControlChange   MessageKind = 0xB0
	KindProgramChange   MessageKind = 0xC0
	KindChannelPressure MessageKind = 0xD0
	KindPitchBend       MessageKind = 0xE0
	KindSystem          MessageKind = 0xF0
)

func (k MessageKind) String() string {
	switch k {
	case KindNoteOff:
		return "NoteOff"
	case KindNoteOn:
		return "NoteOn"
	case KindPolyPressure:
		return "PolyPressure"
	case KindControlChange:
		return "ControlChange"
	case KindProgramChange:
		return "ProgramChange"
	case KindChannelPressure:
		return "ChannelPressure"
	case KindPitchBend:
		return "PitchBend"
	case KindSystem:
		return "System"
	default:
		return fmt.Sprintf("MessageKind(0x%02X)", uint8(k))
	}
}

// Channel is a zero-based MIDI channel (0-15).
type Channel uint8

// DecodeChannelMessage splits a status byte into its kind and channel.
func DecodeChannelMessage(status byte) (MessageKind, Channel) {
	return MessageKind(status & kindMask), Channel(status & channelMask)
}

// NoteOn encodes [0x90|ch, note, velocity].
func NoteOn(ch, note, velocity uint8) []byte {
	return []byte(gomidi.NoteOn(ch&channelMask, note&dataMask, velocity&dataMask))
}

// NoteOff encodes [0x80|ch, note, 0].
func NoteOff(ch, note uint8) []byte {
	return []byte(gomidi.NoteOff(ch&channelMask, note&dataMask))
}

// ControlChange encodes [0xB0|ch, controller, value].
func ControlChange(ch, controller, value uint8) []byte {
	return []byte(gomidi.ControlChange(ch&channelMask, controller&dataMask, value&dataMask))
}

// ProgramChange encodes [0xC0|ch, program]. Programs above 127 wrap to the
// 7-bit data range.
func ProgramChange(ch uint8, program uint16) []byte {
	return []byte(gomidi.ProgramChange(ch&channelMask, uint8(program)&dataMask))
}
