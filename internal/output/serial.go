package output

import (
	"fmt"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// MIDIBaudRate is the DIN MIDI line rate.
const MIDIBaudRate = 31250

// SerialTransport writes raw MIDI bytes to a serial line.
type SerialTransport struct {
	name string
	port serial.Port
}

// OpenSerial opens the named serial device. A zero baud uses MIDIBaudRate.
func OpenSerial(name string, baud int) (*SerialTransport, error) {
	if baud <= 0 {
		baud = MIDIBaudRate
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %q at %d baud: %w", name, baud, err)
	}
	return &SerialTransport{name: name, port: p}, nil
}

// Write writes msg in full.
func (s *SerialTransport) Write(msg []byte) error {
	return writeFull(s.port, msg)
}

// Close closes the port.
func (s *SerialTransport) Close() error { return s.port.Close() }

// Name returns the device path.
func (s *SerialTransport) Name() string { return s.name }

// ListSerialPorts enumerates serial devices with their USB details. What a
// serial line carries is up to its patch, so they are tagged SerialPort.
func ListSerialPorts() ([]contracts.DeviceInfo, error) {
	return listSerialPorts(enumerator.GetDetailedPortsList)
}

func listSerialPorts(list func() ([]*enumerator.PortDetails, error)) ([]contracts.DeviceInfo, error) {
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	infos := make([]contracts.DeviceInfo, 0, len(ports))
	for _, p := range ports {
		id := p.Name
		if p.IsUSB && p.SerialNumber != "" {
			id = p.SerialNumber
		}
		infos = append(infos, contracts.DeviceInfo{
			Name:         p.Name,
			Manufacturer: p.Product,
			NativeID:     id,
			Kind:         contracts.SerialPort,
		})
	}
	return infos, nil
}
