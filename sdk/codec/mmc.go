package codec

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MMCCommand is a MIDI Machine Control transport command.
type MMCCommand uint8

const (
	MMCStop         MMCCommand = 0x01
	MMCPlay         MMCCommand = 0x02
	MMCDeferredPlay MMCCommand = 0x03
	MMCFastForward  MMCCommand = 0x04
	MMCRewind       MMCCommand = 0x05
	MMCRecordStrobe MMCCommand = 0x06
	MMCRecordExit   MMCCommand = 0x07
	MMCRecordPause  MMCCommand = 0x08
	MMCPause        MMCCommand = 0x09
	MMCEject        MMCCommand = 0x0A
	MMCChase        MMCCommand = 0x0B
	MMCReset        MMCCommand = 0x0D
	MMCLocate       MMCCommand = 0x44
)

var mmcCommandNames = map[MMCCommand]string{
	MMCStop: "stop", MMCPlay: "play", MMCDeferredPlay: "deferred_play",
	MMCFastForward: "fast_forward", MMCRewind: "rewind",
	MMCRecordStrobe: "record_strobe", MMCRecordExit: "record_exit",
	MMCRecordPause: "record_pause", MMCPause: "pause", MMCEject: "eject",
	MMCChase: "chase", MMCReset: "reset", MMCLocate: "locate",
}

func (c MMCCommand) String() string {
	if name, ok := mmcCommandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("mmc(0x%02X)", uint8(c))
}

// ParseMMCCommand resolves a command by its snake_case name.
func ParseMMCCommand(name string) (MMCCommand, error) {
	for cmd, n := range mmcCommandNames {
		if n == name {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("unknown mmc command %q", name)
}

// EncodeMMC builds F0 7F <dev> 06 <command> F7.
func EncodeMMC(dev DeviceID, cmd MMCCommand) []byte {
	return []byte(gomidi.SysEx([]byte{
		universalRT,
		byte(dev) & dataMask,
		subIDMachine,
		byte(cmd) & dataMask,
	}))
}

// Timecode is an MMC position at the 25 fps reference rate.
type Timecode struct {
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Frames  uint8
}

const (
	msPerHour   = 3_600_000
	msPerMinute = 60_000
	msPerSecond = 1_000
	msPerFrame  = 40 // 25 fps
)

// MillisToTimecode splits an absolute time in milliseconds. The frame field
// is the millisecond remainder modulo one frame period.
func MillisToTimecode(ms uint32) Timecode {
	return Timecode{
		Hours:   uint8(ms/msPerHour) & dataMask,
		Minutes: uint8((ms/msPerMinute)%60) & dataMask,
		Seconds: uint8((ms/msPerSecond)%60) & dataMask,
		Frames:  uint8(ms%msPerFrame) & dataMask,
	}
}

// EncodeMMCGoto builds an MMC Locate (target) frame:
//
//	F0 7F <dev> 06 44 06 01 hh mm ss ff 00 F7
func EncodeMMCGoto(dev DeviceID, ms uint32) []byte {
	tc := MillisToTimecode(ms)
	return []byte(gomidi.SysEx([]byte{
		universalRT,
		byte(dev) & dataMask,
		subIDMachine,
		byte(MMCLocate),
		0x06, // information field length
		0x01, // TARGET sub-command
		tc.Hours,
		tc.Minutes,
		tc.Seconds,
		tc.Frames,
		0x00, // subframes
	}))
}
