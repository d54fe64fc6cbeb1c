package dmx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// DefaultRetransmitInterval is used when neither the controller nor the
// device sets one.
const DefaultRetransmitInterval = time.Second

// controllerRef is the non-owning handle a device keeps to its controller.
// It reads nil once the controller is closed.
type controllerRef struct {
	p atomic.Pointer[Controller]
}

func (r *controllerRef) load() *Controller {
	if r == nil {
		return nil
	}
	return r.p.Load()
}

// Controller owns a set of devices and hands them frame snapshots.
type Controller struct {
	logger   contracts.Logger
	metrics  *metrics.Metrics
	source   contracts.FrameSource
	interval time.Duration
	ref      *controllerRef

	mu      sync.Mutex
	closed  bool
	devices map[string]*Device
	found   map[string]bool // ids attached by Rescan
	classes map[string]DeviceClass

	// stopping holds ids whose worker has not exited yet. The endpoint is
	// still in use and must not be attached again.
	stopping map[string]bool
	// dropped holds discovered ids removed with Detach, keyed to their
	// class. Rescan skips them until the class stops reporting them.
	dropped map[string]string
}

// NewController creates a controller reading frames from source. A zero
// interval selects DefaultRetransmitInterval.
func NewController(source contracts.FrameSource, interval time.Duration, logger contracts.Logger, m *metrics.Metrics) *Controller {
	if interval <= 0 {
		interval = DefaultRetransmitInterval
	}
	c := &Controller{
		logger:   logger,
		metrics:  m,
		source:   source,
		interval: interval,
		ref:      &controllerRef{},
		devices:  make(map[string]*Device),
		found:    make(map[string]bool),
		classes:  make(map[string]DeviceClass),
		stopping: make(map[string]bool),
		dropped:  make(map[string]string),
	}
	c.ref.p.Store(c)
	return c
}

// GetCurrentFrame returns the snapshot devices transmit.
func (c *Controller) GetCurrentFrame() contracts.Frame {
	if c.source == nil {
		return contracts.Frame{}
	}
	return c.source.CurrentFrame()
}

// RetransmitInterval returns the controller default.
func (c *Controller) RetransmitInterval() time.Duration { return c.interval }

func (c *Controller) intervalFor(d *Device) time.Duration {
	if v := d.override(); v > 0 {
		return v
	}
	return c.interval
}

// RegisterClass adds a device class used by Rescan and NewDevice.
func (c *Controller) RegisterClass(class DeviceClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class.Name()] = class
}

// NewDevice builds a device from a descriptor of a registered class.
func (c *Controller) NewDevice(desc Descriptor) (*Device, error) {
	c.mu.Lock()
	class, ok := c.classes[desc.Class]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, desc.Class)
	}
	family, err := class.New(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", desc.ID(), err)
	}
	return NewDevice(desc, family, c.logger, c.metrics), nil
}

// Attach takes ownership of d and starts its worker.
func (c *Controller) Attach(d *Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachLocked(d)
}

func (c *Controller) attachLocked(d *Device) error {
	if c.closed {
		return ErrControllerClosed
	}
	if _, exists := c.devices[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, d.ID())
	}
	if c.stopping[d.ID()] {
		return fmt.Errorf("%w: %s is still stopping", ErrDuplicateDevice, d.ID())
	}
	c.devices[d.ID()] = d
	d.start(c.ref)
	c.logger.Info("device attached",
		c.logger.Field().String("device", d.ID()),
		c.logger.Field().Int("universes", d.family.SupportedUniverses()))
	return nil
}

// Detach stops the device and releases it. When Detach returns the device
// is Idle and will not write again. A discovered device removed this way is
// not re-attached by Rescan until its class stops reporting it.
func (c *Controller) Detach(id string) error {
	return c.detach(id, true)
}

func (c *Controller) detach(id string, explicit bool) error {
	c.mu.Lock()
	d, ok := c.devices[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if explicit && c.found[id] {
		c.dropped[id] = d.desc.Class
	}
	delete(c.devices, id)
	delete(c.found, id)
	c.stopping[id] = true
	c.mu.Unlock()

	d.stop()

	c.mu.Lock()
	delete(c.stopping, id)
	c.mu.Unlock()
	c.logger.Info("device detached", c.logger.Field().String("device", id))
	return nil
}

// Device returns the attached device with the given id.
func (c *Controller) Device(id string) (*Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[id]
	return d, ok
}

// Devices returns the attached devices ordered by id.
func (c *Controller) Devices() []*Device {
	c.mu.Lock()
	out := make([]*Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// TransmitNow wakes every attached device.
func (c *Controller) TransmitNow() {
	for _, d := range c.Devices() {
		d.TransmitNow()
	}
}

// Rescan runs discovery on every registered class. New endpoints are
// created and attached; endpoints that a class no longer reports are
// detached. An endpoint already attached is never created twice.
func (c *Controller) Rescan(ctx context.Context) error {
	c.mu.Lock()
	classes := make([]DeviceClass, 0, len(c.classes))
	for _, class := range c.classes {
		classes = append(classes, class)
	}
	c.mu.Unlock()

	var errs []error
	for _, class := range classes {
		descs, err := class.Discover(ctx)
		if err != nil {
			// Keep what we have; a flaky enumeration must not drop live devices.
			errs = append(errs, fmt.Errorf("discover %s: %w", class.Name(), err))
			continue
		}
		c.reconcile(class, descs)
	}
	return errors.Join(errs...)
}

func (c *Controller) reconcile(class DeviceClass, descs []Descriptor) {
	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		desc.Class = class.Name()
		id := desc.ID()
		if seen[id] {
			continue
		}
		seen[id] = true

		if !c.wanted(id) {
			continue
		}

		family, err := class.New(desc)
		if err != nil {
			c.logger.Warn("device discovered but not usable",
				c.logger.Field().String("device", id),
				c.logger.Field().Error("error", err))
			continue
		}
		d := NewDevice(desc, family, c.logger, c.metrics)

		c.mu.Lock()
		if err := c.attachLocked(d); err == nil {
			c.found[id] = true
		} else {
			c.logger.Debug("discovered device not attached",
				c.logger.Field().String("device", id),
				c.logger.Field().Error("error", err))
		}
		c.mu.Unlock()
	}

	var gone []string
	c.mu.Lock()
	for id, cls := range c.dropped {
		if cls == class.Name() && !seen[id] {
			delete(c.dropped, id)
		}
	}
	for id := range c.found {
		d := c.devices[id]
		if d != nil && d.desc.Class == class.Name() && !seen[id] {
			gone = append(gone, id)
		}
	}
	c.mu.Unlock()

	for _, id := range gone {
		c.logger.Info("device vanished", c.logger.Field().String("device", id))
		_ = c.detach(id, false)
	}
}

// wanted reports whether Rescan may create a device for id.
func (c *Controller) wanted(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.devices[id]
	_, dropped := c.dropped[id]
	return !exists && !dropped && !c.stopping[id]
}

// Run rescans immediately and then every interval until ctx is done.
func (c *Controller) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	c.rescanLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.rescanLogged(ctx)
		}
	}
}

func (c *Controller) rescanLogged(ctx context.Context) {
	if err := c.Rescan(ctx); err != nil {
		c.logger.Warn("device discovery failed", c.logger.Field().Error("error", err))
	}
}

// Close detaches every device and invalidates the handle devices hold.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.ref.p.Store(nil)
	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.detach(id, false)
	}
	return nil
}
