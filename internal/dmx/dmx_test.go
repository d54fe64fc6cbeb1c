package dmx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"
)

type fakeFamily struct {
	mu          sync.Mutex
	connects    int
	transmits   int
	closes      int
	failConnect int
	transmitErr error
	connected   bool
	last        contracts.Frame
	block       <-chan struct{}
}

func (f *fakeFamily) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnect > 0 {
		f.failConnect--
		return errors.New("link down")
	}
	f.connected = true
	return nil
}

func (f *fakeFamily) Transmit(frame contracts.Frame) error {
	f.mu.Lock()
	f.transmits++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transmitErr != nil {
		return f.transmitErr
	}
	f.last = frame
	return nil
}

func (f *fakeFamily) SupportedUniverses() int { return 1 }

func (f *fakeFamily) Save() map[string]string { return map[string]string{"k": "v"} }

func (f *fakeFamily) Load(map[string]string) error { return nil }

func (f *fakeFamily) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeFamily) counts() (connects, transmits, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.transmits, f.closes
}

type fakeClass struct {
	mu       sync.Mutex
	descs    []Descriptor
	built    int
	block    chan struct{}
	families []*fakeFamily
}

func (c *fakeClass) Name() string { return "fake" }

func (c *fakeClass) Discover(context.Context) ([]Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Descriptor(nil), c.descs...), nil
}

func (c *fakeClass) New(Descriptor) (Family, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.built++
	fam := &fakeFamily{block: c.block}
	c.families = append(c.families, fam)
	return fam, nil
}

func (c *fakeClass) builtCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.built
}

func (c *fakeClass) family(i int) *fakeFamily {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.families[i]
}

func (c *fakeClass) set(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descs = c.descs[:0]
	for _, id := range ids {
		c.descs = append(c.descs, Descriptor{NativeID: id})
	}
}

func newTestController(t *testing.T, interval time.Duration) (*Controller, *FrameBuffer) {
	t.Helper()
	buf := NewFrameBuffer(2)
	c := NewController(buf, interval, logger.New(zaptest.NewLogger(t)), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, buf
}

func attachFake(t *testing.T, c *Controller, id string) (*Device, *fakeFamily) {
	t.Helper()
	fam := &fakeFamily{}
	d := NewDevice(Descriptor{Class: "fake", NativeID: id}, fam, logger.New(zaptest.NewLogger(t)), nil)
	require.NoError(t, c.Attach(d))
	return d, fam
}

func TestDevice_FirstTransmitConnectsOnce(t *testing.T) {
	c, buf := newTestController(t, 5*time.Millisecond)
	require.NoError(t, buf.Set(0, 0, 255))
	d, fam := attachFake(t, c, "a")

	require.Eventually(t, func() bool { return d.FramesSent() >= 5 }, time.Second, time.Millisecond)
	connects, _, _ := fam.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, contracts.StateConnected, d.State())

	fam.mu.Lock()
	assert.Equal(t, byte(255), fam.last.Universe(0)[0])
	fam.mu.Unlock()
}

func TestDevice_DetachMidWaitStopsWorker(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	d, fam := attachFake(t, c, "a")

	require.Eventually(t, func() bool { return d.FramesSent() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Detach(d.ID()))
	assert.Less(t, time.Since(start), time.Second)

	_, transmits, closes := fam.counts()
	d.TransmitNow()
	time.Sleep(20 * time.Millisecond)

	_, after, _ := fam.counts()
	assert.Equal(t, transmits, after, "no frame after detach")
	assert.Equal(t, 1, closes)
	assert.Equal(t, contracts.StateIdle, d.State())

	_, ok := c.Device(d.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, c.Detach(d.ID()), ErrUnknownDevice)
}

func TestDevice_TransmitFailureKeepsConnected(t *testing.T) {
	c, _ := newTestController(t, 2*time.Millisecond)
	fam := &fakeFamily{transmitErr: errors.New("socket gone")}
	d := NewDevice(Descriptor{Class: "fake", NativeID: "a"}, fam, logger.New(zaptest.NewLogger(t)), nil)
	require.NoError(t, c.Attach(d))

	require.Eventually(t, func() bool {
		_, transmits, _ := fam.counts()
		return transmits >= 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, contracts.StateConnected, d.State())
	assert.Zero(t, d.FramesSent())
}

func TestDevice_ConnectRetriesUntilUp(t *testing.T) {
	c, _ := newTestController(t, 2*time.Millisecond)
	fam := &fakeFamily{failConnect: 2}
	d := NewDevice(Descriptor{Class: "fake", NativeID: "a"}, fam, logger.New(zaptest.NewLogger(t)), nil)
	require.NoError(t, c.Attach(d))

	require.Eventually(t, func() bool { return d.State() == contracts.StateConnected }, time.Second, time.Millisecond)
	connects, _, _ := fam.counts()
	assert.Equal(t, 3, connects)
}

func TestDevice_RetransmitOverride(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	d, _ := attachFake(t, c, "a")
	require.Eventually(t, func() bool { return d.FramesSent() == 1 }, time.Second, time.Millisecond)

	d.SetRetransmitInterval(2 * time.Millisecond)
	d.TransmitNow()
	require.Eventually(t, func() bool { return d.FramesSent() >= 5 }, time.Second, time.Millisecond)
}

func TestController_AttachRules(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	d, _ := attachFake(t, c, "a")

	dup := NewDevice(d.Descriptor(), &fakeFamily{}, logger.New(zaptest.NewLogger(t)), nil)
	assert.ErrorIs(t, c.Attach(dup), ErrDuplicateDevice)

	require.NoError(t, c.Close())
	assert.Equal(t, contracts.StateIdle, d.State())
	assert.Nil(t, c.ref.load(), "devices must not resolve a closed controller")
	assert.ErrorIs(t, c.Attach(dup), ErrControllerClosed)
	assert.Empty(t, c.Devices())
}

func TestController_RescanDedupes(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	class := &fakeClass{}
	class.set("x", "y", "x")
	c.RegisterClass(class)

	require.NoError(t, c.Rescan(context.Background()))
	require.NoError(t, c.Rescan(context.Background()))

	devices := c.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "fake:x", devices[0].ID())
	assert.Equal(t, "fake:y", devices[1].ID())
	assert.Equal(t, 2, class.built)

	class.set("y")
	require.NoError(t, c.Rescan(context.Background()))
	devices = c.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "fake:y", devices[0].ID())
}

func TestController_RescanKeepsManualDevices(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	class := &fakeClass{}
	c.RegisterClass(class)
	attachFake(t, c, "manual")

	require.NoError(t, c.Rescan(context.Background()))
	assert.Len(t, c.Devices(), 1)
}

func TestController_RescanDuringDetachDoesNotDoubleAttach(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, time.Hour)
	release := make(chan struct{})
	class := &fakeClass{block: release}
	class.set("x")
	c.RegisterClass(class)

	require.NoError(t, c.Rescan(ctx))
	fam := class.family(0)
	require.Eventually(t, func() bool {
		_, transmits, _ := fam.counts()
		return transmits == 1
	}, time.Second, time.Millisecond)

	detached := make(chan error, 1)
	go func() { detached <- c.Detach("fake:x") }()
	require.Eventually(t, func() bool {
		_, ok := c.Device("fake:x")
		return !ok
	}, time.Second, time.Millisecond)

	// The old worker is still stuck in a write.
	require.NoError(t, c.Rescan(ctx))
	assert.Equal(t, 1, class.builtCount())
	assert.Empty(t, c.Devices())

	manual := NewDevice(Descriptor{Class: "fake", NativeID: "x"}, &fakeFamily{}, logger.New(zaptest.NewLogger(t)), nil)
	assert.ErrorIs(t, c.Attach(manual), ErrDuplicateDevice)

	close(release)
	require.NoError(t, <-detached)

	require.NoError(t, c.Rescan(ctx))
	assert.Equal(t, 1, class.builtCount(), "explicitly detached endpoint stays removed")
	assert.Empty(t, c.Devices())

	class.set()
	require.NoError(t, c.Rescan(ctx))
	class.set("x")
	require.NoError(t, c.Rescan(ctx))
	assert.Equal(t, 2, class.builtCount(), "replugged endpoint is attached again")
	assert.Len(t, c.Devices(), 1)
}

func TestController_NewDeviceUnknownClass(t *testing.T) {
	c, _ := newTestController(t, time.Hour)
	_, err := c.NewDevice(Descriptor{Class: "sacn", NativeID: "1"})
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestFrameBuffer_CopyOnRead(t *testing.T) {
	buf := NewFrameBuffer(1)
	require.NoError(t, buf.Set(0, 10, 42))
	frame := buf.CurrentFrame()

	require.NoError(t, buf.Set(0, 10, 7))
	assert.Equal(t, byte(42), frame.Universe(0)[10])
	assert.Equal(t, byte(7), buf.CurrentFrame().Universe(0)[10])

	assert.Error(t, buf.Set(1, 0, 1))
	assert.Error(t, buf.Set(0, 512, 1))

	buf.Blackout()
	assert.Equal(t, contracts.Universe{}, buf.CurrentFrame().Universe(0))
	assert.Equal(t, contracts.Universe{}, frame.Universe(3), "missing universes read as blackout")
}

func TestBuildArtDMX(t *testing.T) {
	levels := []byte{1, 2, 3}
	pkt := BuildArtDMX(9, 0x0123, levels)
	want := []byte{
		'A', 'r', 't', '-', 'N', 'e', 't', 0x00,
		0x00, 0x50, // OpDmx, little endian
		0x00, 14,
		9, 0x00,
		0x23, 0x01,
		0x00, 0x03,
		1, 2, 3,
	}
	assert.Equal(t, want, pkt)
}

func TestArtNet_SequenceSkipsZero(t *testing.T) {
	a := NewArtNet("127.0.0.1", 1, 0)
	a.seq = 254
	assert.Equal(t, uint8(255), a.nextSeq())
	assert.Equal(t, uint8(1), a.nextSeq())
}

func TestArtNet_ConnectIdempotentAndTransmit(t *testing.T) {
	rx, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer rx.Close()

	port := rx.LocalAddr().(*net.UDPAddr).Port
	a := NewArtNet("127.0.0.1:"+strconv.Itoa(port), 2, 4)
	assert.ErrorIs(t, a.Transmit(contracts.Frame{}), ErrNotConnected)

	require.NoError(t, a.Connect(context.Background()))
	conn := a.conn
	require.NoError(t, a.Connect(context.Background()))
	assert.Same(t, conn, a.conn)

	var u contracts.Universe
	u[0] = 200
	require.NoError(t, a.Transmit(contracts.Frame{Universes: []contracts.Universe{u}}))

	buf := make([]byte, 1024)
	require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i, universe := range []byte{4, 5} {
		n, _, err := rx.ReadFromUDP(buf)
		require.NoError(t, err)
		require.Equal(t, artDMXHeader+contracts.UniverseSize, n)
		assert.Equal(t, byte(i+1), buf[12], "sequence")
		assert.Equal(t, universe, buf[14])
	}

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestArtNet_SaveLoad(t *testing.T) {
	a := NewArtNet("10.0.0.5", 3, 16)
	b := NewArtNet("", 1, 0)
	require.NoError(t, b.Load(a.Save()))
	assert.Equal(t, a.Save(), b.Save())

	assert.ErrorIs(t, b.Load(map[string]string{"universes": "0"}), ErrBadSetting)
	assert.ErrorIs(t, b.Load(map[string]string{"start_universe": "40000"}), ErrBadSetting)
}

func TestParsePollReply(t *testing.T) {
	pkt := make([]byte, 239)
	copy(pkt, artNetID)
	pkt[8], pkt[9] = 0x00, 0x21
	copy(pkt[10:14], []byte{192, 168, 1, 20})
	copy(pkt[26:], "Node A")

	ip, name, ok := ParsePollReply(pkt)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.20", ip.String())
	assert.Equal(t, "Node A", name)

	_, _, ok = ParsePollReply(BuildArtPoll())
	assert.False(t, ok)
}

func TestArtNetClass_StaticNodes(t *testing.T) {
	class := &ArtNetClass{Nodes: []ArtNetNode{{Name: "stage", Address: "10.0.0.9", Universes: 2}}}
	descs, err := class.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "artnet:10.0.0.9", descs[0].ID())

	fam, err := class.New(descs[0])
	require.NoError(t, err)
	assert.Equal(t, 2, fam.SupportedUniverses())
}

func TestBuildEnttecFrame(t *testing.T) {
	var u contracts.Universe
	u[0], u[511] = 10, 20
	msg := BuildEnttecFrame(u[:])

	require.Len(t, msg, 518)
	assert.Equal(t, []byte{0x7E, 6, 0x01, 0x02, 0x00}, msg[:5])
	assert.Equal(t, byte(10), msg[5])
	assert.Equal(t, byte(20), msg[516])
	assert.Equal(t, byte(0xE7), msg[517])
}

type shortWriter struct {
	bytes.Buffer
	closed bool
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > 100 {
		p = p[:100]
	}
	return w.Buffer.Write(p)
}

func (w *shortWriter) Close() error {
	w.closed = true
	return nil
}

func TestEnttec_TransmitWritesWholeFrame(t *testing.T) {
	w := &shortWriter{}
	opened := 0
	e := NewEnttec("/dev/ttyUSB0", func(name string, baud int) (io.WriteCloser, error) {
		opened++
		assert.Equal(t, "/dev/ttyUSB0", name)
		assert.Equal(t, EnttecBaudRate, baud)
		return w, nil
	})

	require.NoError(t, e.Connect(context.Background()))
	require.NoError(t, e.Connect(context.Background()))
	assert.Equal(t, 1, opened)

	require.NoError(t, e.Transmit(contracts.Frame{}))
	assert.Equal(t, 518, w.Len())

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, e.Transmit(contracts.Frame{}), ErrNotConnected)
}

func TestEnttecClass_DiscoverFiltersFTDI(t *testing.T) {
	class := &EnttecClass{ListPorts: func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "EN123456", Product: "DMX USB PRO"},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "2341", PID: "0043", SerialNumber: "ARD1"},
			{Name: "/dev/ttyS0"},
		}, nil
	}}

	descs, err := class.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "enttec:EN123456", descs[0].ID())
	assert.Equal(t, "/dev/ttyUSB0", descs[0].Settings["port"])

	_, err = class.New(Descriptor{Class: EnttecClassID, NativeID: "x"})
	assert.ErrorIs(t, err, ErrBadSetting)
}
