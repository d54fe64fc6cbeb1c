package codec

import (
	"bytes"
	"errors"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MaxSysExLength is the largest SysEx frame, framing bytes included, that
// the output layer will put on the wire.
const MaxSysExLength = 128

const (
	sysExStart    = 0xF0
	sysExEnd      = 0xF7
	universalRT   = 0x7F
	subIDShowCtl  = 0x02
	subIDMachine  = 0x06
	cueSeparator  = 0x00
	mscHeaderSize = 6 // F0 7F dev 02 fmt cmd
)

var (
	// ErrNotMSC is returned when decoding a frame that is not MIDI Show Control.
	ErrNotMSC = errors.New("not a MIDI show control frame")
	// ErrTruncatedFrame is returned for frames missing their F7 terminator.
	ErrTruncatedFrame = errors.New("truncated sysex frame")
)

// DeviceID addresses an MSC/MMC receiver: 0x00-0x6F individual,
// 0x70-0x7E group, 0x7F all-call.
type DeviceID uint8

const (
	FirstGroupID DeviceID = 0x70
	AllCall      DeviceID = 0x7F
)

// IsGroup reports whether the id addresses a group.
func (d DeviceID) IsGroup() bool { return d >= FirstGroupID && d < AllCall }

// IsAllCall reports whether the id addresses every receiver.
func (d DeviceID) IsAllCall() bool { return d&dataMask == AllCall }

// CommandFormat is the MSC category of the receiving equipment.
type CommandFormat uint8

const (
	FormatLighting        CommandFormat = 0x01
	FormatMovingLights    CommandFormat = 0x02
	FormatColorChangers   CommandFormat = 0x03
	FormatStrobes         CommandFormat = 0x04
	FormatLasers          CommandFormat = 0x05
	FormatChasers         CommandFormat = 0x06
	FormatSound           CommandFormat = 0x10
	FormatMusic           CommandFormat = 0x11
	FormatCDPlayers       CommandFormat = 0x12
	FormatEPROMPlayback   CommandFormat = 0x13
	FormatAudioTape       CommandFormat = 0x14
	FormatIntercoms       CommandFormat = 0x15
	FormatAmplifiers      CommandFormat = 0x16
	FormatAudioEffects    CommandFormat = 0x17
	FormatEqualizers      CommandFormat = 0x18
	FormatMachinery       CommandFormat = 0x20
	FormatRigging         CommandFormat = 0x21
	FormatFlys            CommandFormat = 0x22
	FormatLifts           CommandFormat = 0x23
	FormatTurntables      CommandFormat = 0x24
	FormatTrusses         CommandFormat = 0x25
	FormatRobots          CommandFormat = 0x26
	FormatAnimation       CommandFormat = 0x27
	FormatFloats          CommandFormat = 0x28
	FormatBreakaways      CommandFormat = 0x29
	FormatBarges          CommandFormat = 0x2A
	FormatVideo           CommandFormat = 0x30
	FormatVideoTape       CommandFormat = 0x31
	FormatVideoCassette   CommandFormat = 0x32
	FormatVideoDisc       CommandFormat = 0x33
	FormatVideoSwitchers  CommandFormat = 0x34
	FormatVideoEffects    CommandFormat = 0x35
	FormatVideoCharGen    CommandFormat = 0x36
	FormatVideoStill      CommandFormat = 0x37
	FormatVideoMonitors   CommandFormat = 0x38
	FormatProjection      CommandFormat = 0x40
	FormatFilmProjectors  CommandFormat = 0x41
	FormatSlideProjectors CommandFormat = 0x42
	FormatVideoProjectors CommandFormat = 0x43
	FormatDissolvers      CommandFormat = 0x44
	FormatShutterControls CommandFormat = 0x45
	FormatProcessControl  CommandFormat = 0x50
	FormatHydraulicOil    CommandFormat = 0x51
	FormatH2O             CommandFormat = 0x52
	FormatCO2             CommandFormat = 0x53
	FormatCompressedAir   CommandFormat = 0x54
	FormatNaturalGas      CommandFormat = 0x55
	FormatFog             CommandFormat = 0x56
	FormatSmoke           CommandFormat = 0x57
	FormatCrackedHaze     CommandFormat = 0x58
	FormatPyro            CommandFormat = 0x60
	FormatFireworks       CommandFormat = 0x61
	FormatExplosions      CommandFormat = 0x62
	FormatFlame           CommandFormat = 0x63
	FormatSmokePots       CommandFormat = 0x64
	FormatAllTypes        CommandFormat = 0x7F
)

// MSCCommand is an MSC opcode. MSCNone is a local no-op and never
// reaches the wire.
type MSCCommand uint8

const (
	MSCNone          MSCCommand = 0x00
	MSCGo            MSCCommand = 0x01
	MSCStop          MSCCommand = 0x02
	MSCResume        MSCCommand = 0x03
	MSCTimedGo       MSCCommand = 0x04
	MSCLoad          MSCCommand = 0x05
	MSCSet           MSCCommand = 0x06
	MSCFire          MSCCommand = 0x07
	MSCAllOff        MSCCommand = 0x08
	MSCRestore       MSCCommand = 0x09
	MSCReset         MSCCommand = 0x0A
	MSCGoOff         MSCCommand = 0x0B
	MSCGoJamClock    MSCCommand = 0x10
	MSCStandbyPlus   MSCCommand = 0x11
	MSCStandbyMinus  MSCCommand = 0x12
	MSCSequencePlus  MSCCommand = 0x13
	MSCSequenceMinus MSCCommand = 0x14
	MSCStartClock    MSCCommand = 0x15
	MSCStopClock     MSCCommand = 0x16
	MSCZeroClock     MSCCommand = 0x17
	MSCSetClock      MSCCommand = 0x18
	MSCMTCChaseOn    MSCCommand = 0x19
	MSCMTCChaseOff   MSCCommand = 0x1A
	MSCOpenCueList   MSCCommand = 0x1B
	MSCCloseCueList  MSCCommand = 0x1C
	MSCOpenCuePath   MSCCommand = 0x1D
	MSCCloseCuePath  MSCCommand = 0x1E
)

var mscCommandNames = map[MSCCommand]string{
	MSCNone: "none", MSCGo: "go", MSCStop: "stop", MSCResume: "resume",
	MSCTimedGo: "timed_go", MSCLoad: "load", MSCSet: "set", MSCFire: "fire",
	MSCAllOff: "all_off", MSCRestore: "restore", MSCReset: "reset",
	MSCGoOff: "go_off", MSCGoJamClock: "go_jam_clock",
	MSCStandbyPlus: "standby_plus", MSCStandbyMinus: "standby_minus",
	MSCSequencePlus: "sequence_plus", MSCSequenceMinus: "sequence_minus",
	MSCStartClock: "start_clock", MSCStopClock: "stop_clock",
	MSCZeroClock: "zero_clock", MSCSetClock: "set_clock",
	MSCMTCChaseOn: "mtc_chase_on", MSCMTCChaseOff: "mtc_chase_off",
	MSCOpenCueList: "open_cue_list", MSCCloseCueList: "close_cue_list",
	MSCOpenCuePath: "open_cue_path", MSCCloseCuePath: "close_cue_path",
}

func (c MSCCommand) String() string {
	if name, ok := mscCommandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("msc(0x%02X)", uint8(c))
}

// ParseMSCCommand resolves a command by its snake_case name.
func ParseMSCCommand(name string) (MSCCommand, error) {
	for cmd, n := range mscCommandNames {
		if n == name {
			return cmd, nil
		}
	}
	return MSCNone, fmt.Errorf("unknown msc command %q", name)
}

// CueID identifies a cue. Each part is an ASCII number such as "12.5".
type CueID struct {
	Number string
	List   string
	Path   string
}

// cueData serialises the cue as number [00 list [00 path]]. A path without
// a list cannot be expressed and is dropped.
func (c *CueID) cueData(defaultList, defaultPath string) []byte {
	if c == nil || c.Number == "" {
		return nil
	}
	list, path := c.List, c.Path
	if list == "" {
		list = defaultList
	}
	if path == "" {
		path = defaultPath
	}

	buf := make([]byte, 0, len(c.Number)+len(list)+len(path)+2)
	buf = appendASCII(buf, c.Number)
	if list != "" {
		buf = append(buf, cueSeparator)
		buf = appendASCII(buf, list)
		if path != "" {
			buf = append(buf, cueSeparator)
			buf = appendASCII(buf, path)
		}
	}
	return buf
}

func appendASCII(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		buf = append(buf, s[i]&dataMask)
	}
	return buf
}

// EncodeMSC builds an MSC frame:
//
//	F0 7F <dev> 02 <format> <command> [cue data] F7
//
// MSCNone yields an empty slice. Cue data that would push the frame past
// MaxSysExLength is left out.
func EncodeMSC(dev DeviceID, format CommandFormat, cmd MSCCommand, cue *CueID, defaultList, defaultPath string) []byte {
	if byte(cmd)&dataMask == byte(MSCNone) {
		return nil
	}

	data := cue.cueData(defaultList, defaultPath)
	if mscHeaderSize+len(data)+1 > MaxSysExLength {
		data = nil
	}

	body := make([]byte, 0, mscHeaderSize-1+len(data))
	body = append(body,
		universalRT,
		byte(dev)&dataMask,
		subIDShowCtl,
		byte(format)&dataMask,
		byte(cmd)&dataMask,
	)
	body = append(body, data...)
	return []byte(gomidi.SysEx(body))
}

// MSCMessage is a decoded MSC frame.
type MSCMessage struct {
	Device  DeviceID
	Format  CommandFormat
	Command MSCCommand
	Cue     *CueID
}

// DecodeMSC parses a frame produced by EncodeMSC or a console.
func DecodeMSC(frame []byte) (MSCMessage, error) {
	if len(frame) < mscHeaderSize+1 || frame[0] != sysExStart || frame[1] != universalRT || frame[3] != subIDShowCtl {
		return MSCMessage{}, ErrNotMSC
	}
	if frame[len(frame)-1] != sysExEnd {
		return MSCMessage{}, ErrTruncatedFrame
	}

	msg := MSCMessage{
		Device:  DeviceID(frame[2]),
		Format:  CommandFormat(frame[4]),
		Command: MSCCommand(frame[5]),
	}

	data := frame[mscHeaderSize : len(frame)-1]
	if len(data) > 0 {
		parts := bytes.SplitN(data, []byte{cueSeparator}, 3)
		cue := &CueID{Number: string(parts[0])}
		if len(parts) > 1 {
			cue.List = string(parts[1])
		}
		if len(parts) > 2 {
			cue.Path = string(parts[2])
		}
		msg.Cue = cue
	}
	return msg, nil
}
