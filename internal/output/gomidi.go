package output

import (
	"fmt"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// PortTransport sends through a gomidi output port. A driver such as
// rtmididrv must be registered by the program.
type PortTransport struct {
	out  drivers.Out
	send func(msg gomidi.Message) error
}

// OpenPort finds the output port whose name contains name and opens it.
func OpenPort(name string) (*PortTransport, error) {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("find midi output %q: %w", name, err)
	}
	return NewPortTransport(out)
}

// NewPortTransport opens out for sending.
func NewPortTransport(out drivers.Out) (*PortTransport, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open midi output %q: %w", out.String(), err)
	}
	return &PortTransport{out: out, send: send}, nil
}

// Write sends msg as a single message.
func (p *PortTransport) Write(msg []byte) error {
	return p.send(gomidi.Message(msg))
}

// Close closes the port.
func (p *PortTransport) Close() error { return p.out.Close() }

// Name returns the port name.
func (p *PortTransport) Name() string { return p.out.String() }

// ListPorts returns the output ports of the registered gomidi driver.
func ListPorts() []contracts.DeviceInfo {
	ports := gomidi.GetOutPorts()
	infos := make([]contracts.DeviceInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, contracts.DeviceInfo{
			Name:     p.String(),
			NativeID: p.String(),
			Kind:     contracts.MIDIOutputPort,
		})
	}
	return infos
}
