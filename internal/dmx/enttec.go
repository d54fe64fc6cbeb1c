package dmx

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Enttec DMX USB Pro constants.
const (
	EnttecClassID   = "enttec"
	EnttecBaudRate  = 57600
	enttecStart     = 0x7E
	enttecEnd       = 0xE7
	enttecLabelDMX  = 6
	enttecVendorID  = "0403"
	enttecProductID = "6001"
)

// SerialOpener opens a serial line for writing.
type SerialOpener func(name string, baud int) (io.WriteCloser, error)

// OpenSerialPort is the default SerialOpener.
func OpenSerialPort(name string, baud int) (io.WriteCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	return p, nil
}

// Enttec writes "Output Only Send DMX" frames to a DMX USB Pro widget.
type Enttec struct {
	mu   sync.Mutex
	open SerialOpener
	port string
	baud int
	w    io.WriteCloser
}

// NewEnttec creates an Enttec family for the serial device port.
func NewEnttec(port string, open SerialOpener) *Enttec {
	if open == nil {
		open = OpenSerialPort
	}
	return &Enttec{open: open, port: port, baud: EnttecBaudRate}
}

// Connect opens the serial line.
func (e *Enttec) Connect(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w != nil {
		return nil
	}
	w, err := e.open(e.port, e.baud)
	if err != nil {
		return err
	}
	e.w = w
	return nil
}

// Transmit writes the first universe of frame.
func (e *Enttec) Transmit(frame contracts.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w == nil {
		return ErrNotConnected
	}

	levels := frame.Universe(0)
	msg := BuildEnttecFrame(levels[:])
	for len(msg) > 0 {
		n, err := e.w.Write(msg)
		if err != nil {
			return fmt.Errorf("write %s: %w", e.port, err)
		}
		if n == 0 {
			return fmt.Errorf("write %s: %w", e.port, io.ErrShortWrite)
		}
		msg = msg[n:]
	}
	return nil
}

// SupportedUniverses returns 1.
func (e *Enttec) SupportedUniverses() int { return 1 }

// Save returns port and baud.
func (e *Enttec) Save() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]string{"port": e.port, "baud": strconv.Itoa(e.baud)}
}

// Load applies settings produced by Save.
func (e *Enttec) Load(settings map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := settings["port"]; ok && v != "" {
		e.port = v
	}
	if v, ok := settings["baud"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: baud %q", ErrBadSetting, v)
		}
		e.baud = n
	}
	return nil
}

// Close closes the serial line.
func (e *Enttec) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w == nil {
		return nil
	}
	err := e.w.Close()
	e.w = nil
	return err
}

// BuildEnttecFrame wraps levels (start code 0 prepended) in the widget's
// label 6 envelope.
func BuildEnttecFrame(levels []byte) []byte {
	if len(levels) > contracts.UniverseSize {
		levels = levels[:contracts.UniverseSize]
	}
	size := len(levels) + 1
	msg := make([]byte, 0, size+5)
	msg = append(msg, enttecStart, enttecLabelDMX, byte(size), byte(size>>8), 0x00)
	msg = append(msg, levels...)
	return append(msg, enttecEnd)
}

// EnttecClass finds DMX USB Pro widgets among USB serial ports.
type EnttecClass struct {
	// ListPorts defaults to enumerator.GetDetailedPortsList.
	ListPorts func() ([]*enumerator.PortDetails, error)
	// Open defaults to OpenSerialPort.
	Open SerialOpener
}

// Name returns "enttec".
func (c *EnttecClass) Name() string { return EnttecClassID }

// Discover lists FTDI serial ports. The USB serial number is the native
// id so a widget keeps its identity when it moves to another port.
func (c *EnttecClass) Discover(_ context.Context) ([]Descriptor, error) {
	list := c.ListPorts
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, err
	}

	var descs []Descriptor
	for _, p := range ports {
		if !p.IsUSB || !strings.EqualFold(p.VID, enttecVendorID) || !strings.EqualFold(p.PID, enttecProductID) {
			continue
		}
		id := p.SerialNumber
		if id == "" {
			id = p.Name
		}
		descs = append(descs, Descriptor{
			Class:    EnttecClassID,
			NativeID: id,
			Name:     p.Product,
			Settings: map[string]string{"port": p.Name},
		})
	}
	return descs, nil
}

// New builds an Enttec family from the descriptor settings.
func (c *EnttecClass) New(desc Descriptor) (Family, error) {
	e := NewEnttec(desc.Settings["port"], c.Open)
	if err := e.Load(desc.Settings); err != nil {
		return nil, err
	}
	if e.port == "" {
		return nil, fmt.Errorf("%w: missing port", ErrBadSetting)
	}
	return e, nil
}
