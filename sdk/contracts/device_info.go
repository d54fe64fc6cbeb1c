package contracts

// DeviceInfo describes an output endpoint found during port or hardware
// enumeration.
type DeviceInfo struct {
	Name         string // Port or device name as reported by the driver.
	Manufacturer string // Device manufacturer, when the driver reports one.
	NativeID     string // Stable identifier (USB serial number, IP address, port name).
	Kind         PortKind
}

// PortKind is the role a patched port plays.
type PortKind string

const (
	// MIDIOutputPort carries MIDI messages.
	MIDIOutputPort PortKind = "midi-out"
	// DMXPort carries DMX universes.
	DMXPort PortKind = "dmx"
	// SerialPort is a serial line whose use is not known yet.
	SerialPort PortKind = "serial"
)

// PatchPort describes one named port of a patch. Output is used only for
// MIDIOutputPort entries.
type PatchPort struct {
	Kind   PortKind
	Output OutputConfig
}
