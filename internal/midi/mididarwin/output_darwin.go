//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI output handling.
var (
	ErrNoMIDIDestinations = errors.New("no MIDI destinations found")
	ErrDestinationMissing = errors.New("MIDI destination not found")
	ErrCreateOutputPort   = errors.New("error creating output port")
)

// Output sends packets to one CoreMIDI destination.
type Output struct {
	logger      contracts.Logger
	mu          sync.Mutex
	client      coremidi.Client
	port        coremidi.OutputPort
	destination coremidi.Destination
	name        string
}

// ListOutputs lists CoreMIDI destinations.
func ListOutputs() ([]contracts.DeviceInfo, error) {
	dests, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(dests) == 0 {
		return nil, ErrNoMIDIDestinations
	}
	devices := make([]contracts.DeviceInfo, len(dests))
	for i, d := range dests {
		entity := d.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         d.Name(),
			Manufacturer: entity.Manufacturer(),
			NativeID:     entity.Name() + "/" + d.Name(),
			Kind:         contracts.MIDIOutputPort,
		}
	}
	return devices, nil
}

// Open creates a client and output port bound to the first destination
// whose name contains name.
func Open(name, clientName string, logger contracts.Logger) (*Output, error) {
	dests, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}

	var (
		dest  coremidi.Destination
		found bool
	)
	for _, d := range dests {
		if strings.Contains(strings.ToLower(d.Name()), strings.ToLower(name)) {
			dest, found = d, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrDestinationMissing, name)
	}

	client, err := coremidi.NewClient(clientName)
	if err != nil {
		return nil, err
	}
	port, err := coremidi.NewOutputPort(client, "Output Port")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}

	logger.Info("CoreMIDI output opened", logger.Field().String("destination", dest.Name()))
	return &Output{
		logger:      logger,
		client:      client,
		port:        port,
		destination: dest,
		name:        dest.Name(),
	}, nil
}

// Write sends msg as one packet.
func (o *Output) Write(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	packet := coremidi.NewPacket(msg, 0)
	return packet.Send(&o.port, &o.destination)
}

// Close releases nothing; CoreMIDI ports live as long as the client.
func (o *Output) Close() error { return nil }

// Name returns the destination name.
func (o *Output) Name() string { return o.name }
