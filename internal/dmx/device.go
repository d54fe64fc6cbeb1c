package dmx

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"golang.org/x/time/rate"
)

// errLogEvery bounds how often a failing device logs at Warn.
const errLogEvery = 10 * time.Second

// Device is one output endpoint. While attached to a controller it owns a
// worker goroutine and, through its Family, the wire handle.
type Device struct {
	desc    Descriptor
	family  Family
	logger  contracts.Logger
	metrics *metrics.Metrics
	errLog  *rate.Limiter
	state   atomic.Int32
	frames  atomic.Uint64

	// wake holds at most one pending transmit request.
	wake chan struct{}

	mu       sync.Mutex
	interval time.Duration
	ctrl     *controllerRef
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDevice wraps family as a device described by desc.
func NewDevice(desc Descriptor, family Family, logger contracts.Logger, m *metrics.Metrics) *Device {
	return &Device{
		desc:    desc,
		family:  family,
		logger:  logger.With(logger.Field().String("device", desc.ID())),
		metrics: m,
		errLog:  rate.NewLimiter(rate.Every(errLogEvery), 1),
		wake:    make(chan struct{}, 1),
	}
}

// ID returns the controller-wide key "class:nativeID".
func (d *Device) ID() string { return d.desc.ID() }

// Descriptor returns the discovery descriptor.
func (d *Device) Descriptor() Descriptor { return d.desc }

// Family returns the wire family.
func (d *Device) Family() Family { return d.family }

// State returns the connection state.
func (d *Device) State() contracts.ConnectionState {
	return contracts.ConnectionState(d.state.Load())
}

// FramesSent counts successful transmits since creation.
func (d *Device) FramesSent() uint64 { return d.frames.Load() }

// SetRetransmitInterval overrides the controller default. Zero restores it.
// It takes effect at the next wait.
func (d *Device) SetRetransmitInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = interval
}

// TransmitNow wakes the worker. Requests coalesce while one is pending.
func (d *Device) TransmitNow() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Save returns the family settings tagged with the device class.
func (d *Device) Save() map[string]string {
	settings := d.family.Save()
	out := make(map[string]string, len(settings)+1)
	for k, v := range settings {
		out[k] = v
	}
	out["class"] = d.desc.Class
	return out
}

// start launches the worker. Called by the controller with the device
// not yet running.
func (d *Device) start(ref *controllerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	d.ctrl = ref
	d.cancel = cancel
	d.done = make(chan struct{})
	d.setState(contracts.StateConnecting)

	go d.run(ctx, ref, d.done)
	d.TransmitNow()
}

// stop signals the worker, waits for it to exit and closes the link. No
// frame is written once stop has returned.
func (d *Device) stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done, d.ctrl = nil, nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if err := d.family.Close(); err != nil {
		d.logger.Debug("closing device link", d.logger.Field().Error("error", err))
	}
	d.setState(contracts.StateIdle)
}

func (d *Device) run(ctx context.Context, ref *controllerRef, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(d.retransmitInterval(ref))
	defer timer.Stop()

	connected := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		ctrl := ref.load()
		if ctrl == nil {
			// Controller torn down; wait for the explicit stop.
			timer.Reset(d.retransmitInterval(ref))
			continue
		}

		if !connected {
			if err := d.family.Connect(ctx); err != nil {
				d.fail("connect", err)
				timer.Reset(ctrl.intervalFor(d))
				continue
			}
			connected = true
			d.setState(contracts.StateConnected)
			d.logger.Info("device connected")
		}

		if err := d.family.Transmit(ctrl.GetCurrentFrame()); err != nil {
			d.fail("transmit", err)
		} else {
			d.frames.Add(1)
			d.metrics.FrameSent(d.ID())
		}
		timer.Reset(ctrl.intervalFor(d))
	}
}

func (d *Device) retransmitInterval(ref *controllerRef) time.Duration {
	if ctrl := ref.load(); ctrl != nil {
		return ctrl.intervalFor(d)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interval > 0 {
		return d.interval
	}
	return DefaultRetransmitInterval
}

func (d *Device) override() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// fail records a connect or transmit error. The device keeps its state;
// the next tick retries.
func (d *Device) fail(stage string, err error) {
	d.metrics.TransmitError(d.ID(), stage)
	if d.errLog.Allow() {
		d.logger.Warn("device "+stage+" failed", d.logger.Field().Error("error", err))
		return
	}
	d.logger.Debug("device "+stage+" failed", d.logger.Field().Error("error", err))
}

func (d *Device) setState(s contracts.ConnectionState) {
	d.state.Store(int32(s))
	d.metrics.DeviceState(d.ID(), s)
}
