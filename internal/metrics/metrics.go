// Package metrics defines the Prometheus collectors of the output layer.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stagewire"

// Metrics groups every collector.
type Metrics struct {
	framesSent      *prometheus.CounterVec
	transmitErrors  *prometheus.CounterVec
	deviceState     *prometheus.GaugeVec
	midiSent        *prometheus.CounterVec
	midiWriteErrors *prometheus.CounterVec
	peersKnown      prometheus.Gauge
	peersOnline     prometheus.Gauge
}

// New creates the collectors and registers them on reg. Collectors that
// are already registered (several channels sharing one registry) are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dmx",
			Name:      "frames_sent_total",
			Help:      "Frames written to the wire per device.",
		}, []string{"device"}),
		transmitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dmx",
			Name:      "transmit_errors_total",
			Help:      "Failed connect or transmit attempts per device.",
		}, []string{"device", "stage"}),
		deviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dmx",
			Name:      "device_state",
			Help:      "Connection state per device (0 idle, 1 connecting, 2 connected).",
		}, []string{"device"}),
		midiSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midi",
			Name:      "messages_sent_total",
			Help:      "MIDI messages handed to the transport per channel and kind.",
		}, []string{"output", "kind"}),
		midiWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midi",
			Name:      "write_errors_total",
			Help:      "MIDI transport write failures per channel.",
		}, []string{"output"}),
		peersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "known",
			Help:      "Peers held by the registry.",
		}),
		peersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "online",
			Help:      "Peers seen within the online threshold at the last check.",
		}),
	}

	var err error
	m.framesSent, err = register(reg, m.framesSent)
	if err != nil {
		return nil, err
	}
	m.transmitErrors, err = register(reg, m.transmitErrors)
	if err != nil {
		return nil, err
	}
	m.deviceState, err = register(reg, m.deviceState)
	if err != nil {
		return nil, err
	}
	m.midiSent, err = register(reg, m.midiSent)
	if err != nil {
		return nil, err
	}
	m.midiWriteErrors, err = register(reg, m.midiWriteErrors)
	if err != nil {
		return nil, err
	}
	m.peersKnown, err = register(reg, m.peersKnown)
	if err != nil {
		return nil, err
	}
	m.peersOnline, err = register(reg, m.peersOnline)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// FrameSent counts one successful transmit.
func (m *Metrics) FrameSent(device string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(device).Inc()
}

// TransmitError counts a failure in the given stage ("connect" or "transmit").
func (m *Metrics) TransmitError(device, stage string) {
	if m == nil {
		return
	}
	m.transmitErrors.WithLabelValues(device, stage).Inc()
}

// DeviceState records the current connection state.
func (m *Metrics) DeviceState(device string, state contracts.ConnectionState) {
	if m == nil {
		return
	}
	m.deviceState.WithLabelValues(device).Set(float64(state))
}

// MIDISent counts one message handed to a transport.
func (m *Metrics) MIDISent(output, kind string) {
	if m == nil {
		return
	}
	m.midiSent.WithLabelValues(output, kind).Inc()
}

// MIDIWriteError counts one transport write failure.
func (m *Metrics) MIDIWriteError(output string) {
	if m == nil {
		return
	}
	m.midiWriteErrors.WithLabelValues(output).Inc()
}

// Peers records registry size and online count.
func (m *Metrics) Peers(known, online int) {
	if m == nil {
		return
	}
	m.peersKnown.Set(float64(known))
	m.peersOnline.Set(float64(online))
}
