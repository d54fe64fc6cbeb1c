package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/stagewire/internal/midi/mididarwin"
	"github.com/leandrodaf/stagewire/internal/midi/midiwindows"
	"github.com/leandrodaf/stagewire/internal/output"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

var (
	// ErrUnsupportedOS is returned when the native driver is requested on an OS without one.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnsupportedDriver is returned for unknown driver names.
	ErrUnsupportedDriver = errors.New("unsupported output driver")
	// ErrNoPort is returned when the configuration names no port.
	ErrNoPort = errors.New("no output port configured")
)

// nativeOpeners maps OS names to the native output transport.
var nativeOpeners = map[string]func(cfg *contracts.OutputConfig, log contracts.Logger) (contracts.Transport, error){
	"darwin": func(cfg *contracts.OutputConfig, log contracts.Logger) (contracts.Transport, error) {
		return mididarwin.Open(cfg.Port, "stagewire", log)
	},
	"windows": func(cfg *contracts.OutputConfig, log contracts.Logger) (contracts.Transport, error) {
		return midiwindows.Open(cfg.Port, log)
	},
}

// OpenTransport opens the wire transport named by cfg.Driver.
func OpenTransport(cfg *contracts.OutputConfig, log contracts.Logger) (contracts.Transport, error) {
	if cfg.Port == "" {
		return nil, ErrNoPort
	}

	switch cfg.Driver {
	case contracts.DriverGoMIDI:
		return opened(output.OpenPort(cfg.Port))
	case contracts.DriverSerial:
		return opened(output.OpenSerial(cfg.Port, cfg.BaudRate))
	case contracts.DriverFile:
		return opened(output.OpenFile(cfg.Port))
	case contracts.DriverNative:
		if open, exists := nativeOpeners[runtime.GOOS]; exists {
			t, err := open(cfg, log)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// opened keeps a failed open from escaping as a typed nil transport.
func opened[T contracts.Transport](t T, err error) (contracts.Transport, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListOutputs lists the ports available to driver.
func ListOutputs(driver contracts.OutputDriver) ([]contracts.DeviceInfo, error) {
	switch driver {
	case contracts.DriverGoMIDI:
		return output.ListPorts(), nil
	case contracts.DriverSerial:
		return output.ListSerialPorts()
	case contracts.DriverNative:
		switch runtime.GOOS {
		case "darwin":
			return mididarwin.ListOutputs()
		case "windows":
			return midiwindows.ListOutputs()
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
