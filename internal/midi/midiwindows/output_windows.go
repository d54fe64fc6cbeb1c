//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"golang.org/x/sys/windows"
)

// HMIDIOUT is a winmm output handle.
type HMIDIOUT windows.Handle

const (
	CALLBACK_NULL        = 0x00000000 // No completion callback
	MIDIERR_STILLPLAYING = 65         // Buffer still owned by the driver
)

// longMsgTimeout bounds the wait for the driver to release a SysEx buffer.
const longMsgTimeout = 500 * time.Millisecond

// Error definitions for winmm output handling.
var (
	ErrNoMIDIOutputs  = errors.New("no MIDI outputs found")
	ErrOutputNotFound = errors.New("MIDI output not found")
	ErrLongMsgTimeout = errors.New("timed out waiting for sysex buffer")
)

// midiOutCaps mirrors MIDIOUTCAPSW.
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// midiHdr mirrors MIDIHDR.
type midiHdr struct {
	lpData          *byte
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

var (
	winmm                      = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs      = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps      = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen            = winmm.NewProc("midiOutOpen")
	procMidiOutClose           = winmm.NewProc("midiOutClose")
	procMidiOutShortMsg        = winmm.NewProc("midiOutShortMsg")
	procMidiOutLongMsg         = winmm.NewProc("midiOutLongMsg")
	procMidiOutPrepareHeader   = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHeader = winmm.NewProc("midiOutUnprepareHeader")
)

// Output writes to a winmm MIDI output device.
type Output struct {
	logger contracts.Logger
	name   string
	mu     sync.Mutex
	handle HMIDIOUT
}

// ListOutputs lists the winmm output devices.
func ListOutputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	n := uint32(r0)
	if n == 0 {
		return nil, ErrNoMIDIOutputs
	}

	devices := make([]contracts.DeviceInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Name:         name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
			NativeID:     fmt.Sprintf("winmm:%d", i),
			Kind:         contracts.MIDIOutputPort,
		})
	}
	return devices, nil
}

// Open opens the first output whose name contains name.
func Open(name string, logger contracts.Logger) (*Output, error) {
	devices, err := ListOutputs()
	if err != nil {
		return nil, err
	}

	id := -1
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			if _, err := fmt.Sscanf(d.NativeID, "winmm:%d", &id); err != nil {
				continue
			}
			name = d.Name
			break
		}
	}
	if id < 0 {
		return nil, fmt.Errorf("%w: %q", ErrOutputNotFound, name)
	}

	o := &Output{logger: logger, name: name}
	r1, _, callErr := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&o.handle)),
		uintptr(id),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		return nil, fmt.Errorf("midiOutOpen %q: mmresult %d: %v", name, r1, callErr)
	}
	logger.Info("winmm MIDI output opened", logger.Field().String("device", name))
	return o, nil
}

// Write sends short messages with midiOutShortMsg and SysEx with midiOutLongMsg.
func (o *Output) Write(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(msg) == 0 {
		return nil
	}
	if msg[0] == 0xF0 {
		return o.writeLong(msg)
	}

	var packed uint32
	for i := 0; i < len(msg) && i < 3; i++ {
		packed |= uint32(msg[i]) << (8 * i)
	}
	r1, _, err := procMidiOutShortMsg.Call(uintptr(o.handle), uintptr(packed))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg: mmresult %d: %v", r1, err)
	}
	return nil
}

func (o *Output) writeLong(msg []byte) error {
	buf := append([]byte(nil), msg...)
	hdr := midiHdr{
		lpData:         &buf[0],
		dwBufferLength: uint32(len(buf)),
	}
	size := unsafe.Sizeof(hdr)

	r1, _, err := procMidiOutPrepareHeader.Call(uintptr(o.handle), uintptr(unsafe.Pointer(&hdr)), size)
	if r1 != 0 {
		return fmt.Errorf("midiOutPrepareHeader: mmresult %d: %v", r1, err)
	}

	r1, _, err = procMidiOutLongMsg.Call(uintptr(o.handle), uintptr(unsafe.Pointer(&hdr)), size)
	if r1 != 0 {
		procMidiOutUnprepareHeader.Call(uintptr(o.handle), uintptr(unsafe.Pointer(&hdr)), size)
		return fmt.Errorf("midiOutLongMsg: mmresult %d: %v", r1, err)
	}

	deadline := time.Now().Add(longMsgTimeout)
	for {
		r1, _, _ = procMidiOutUnprepareHeader.Call(uintptr(o.handle), uintptr(unsafe.Pointer(&hdr)), size)
		if r1 != MIDIERR_STILLPLAYING {
			break
		}
		if time.Now().After(deadline) {
			return ErrLongMsgTimeout
		}
		time.Sleep(time.Millisecond)
	}
	if r1 != 0 {
		return fmt.Errorf("midiOutUnprepareHeader: mmresult %d", r1)
	}
	return nil
}

// Close closes the device handle.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == 0 {
		return nil
	}
	r1, _, err := procMidiOutClose.Call(uintptr(o.handle))
	o.handle = 0
	if r1 != 0 {
		return fmt.Errorf("midiOutClose: mmresult %d: %v", r1, err)
	}
	return nil
}

// Name returns the device name.
func (o *Output) Name() string { return o.name }
