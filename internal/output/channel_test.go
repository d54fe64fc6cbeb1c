package output

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/codec"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"
)

type fakeTransport struct {
	mu       sync.Mutex
	messages [][]byte
	fail     error
	closed   bool
}

func (f *fakeTransport) Write(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.messages = append(f.messages, append([]byte(nil), msg...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

func newTestChannel(t *testing.T, cfg Config) (*Channel, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	return NewChannel(ft, cfg, logger.New(zaptest.NewLogger(t)), nil), ft
}

func TestNoteTracking_AllChannelsAndNotes(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})

	for c := uint8(0); c <= codec.MaxChannel; c++ {
		for n := uint8(0); n <= codec.MaxData; n += 7 {
			v := (n + c) & 0x7F
			require.NoError(t, ch.SendNoteOn(c, n, v))
			assert.Equal(t, v, ch.TrackedNote(c, n))

			require.NoError(t, ch.SendNoteOff(c, n))
			assert.Zero(t, ch.TrackedNote(c, n))
		}
	}
	assert.NotEmpty(t, ft.sent())
}

func TestSendNoteOn_WireBytes(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})
	require.NoError(t, ch.SendNoteOn(9, 36, 110))
	assert.Equal(t, [][]byte{{0x99, 36, 110}}, ft.sent())
}

func TestControlChangeTracking(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})

	require.NoError(t, ch.SendControlChange(3, 7, 100))
	assert.Equal(t, uint8(100), ch.TrackedControl(3, 7))

	require.NoError(t, ch.SendControlChange(3, 7, 100))
	assert.Len(t, ft.sent(), 2, "sends are never deduplicated")

	require.NoError(t, ch.SendControlChange(3, 7, 0))
	assert.Zero(t, ch.TrackedControl(3, 7))
}

func TestProgramChange(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})

	require.NoError(t, ch.SendProgramChange(0, 200))
	assert.Equal(t, uint8(200&0x7F), ch.TrackedProgram(0))
	assert.Equal(t, []byte{0xC0, 200 & 0x7F}, ft.sent()[0])

	err := ch.SendProgramChange(0, 256)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestValidation_NoWriteOnError(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})

	assert.ErrorIs(t, ch.SendNoteOn(16, 0, 0), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendNoteOn(0, 128, 0), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendNoteOn(0, 0, 128), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendNoteOff(0, 200), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendControlChange(0, 128, 0), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendControlChange(0, 0, 255), ErrOutOfRange)
	assert.ErrorIs(t, ch.SendAllNotesOff(16), ErrOutOfRange)

	assert.Empty(t, ft.sent())
}

func TestSendSysEx(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})

	require.NoError(t, ch.SendSysEx([]byte{0xF0, 0x7D, 0x01, 0xF7}))
	assert.Len(t, ft.sent(), 1)

	assert.ErrorIs(t, ch.SendSysEx([]byte{0x7D, 0x01, 0xF7}), ErrInvalidSysEx)
	assert.ErrorIs(t, ch.SendSysEx([]byte{0xF0, 0x80, 0xF7}), ErrInvalidSysEx)

	long := make([]byte, codec.MaxSysExLength+1)
	long[0], long[len(long)-1] = 0xF0, 0xF7
	assert.ErrorIs(t, ch.SendSysEx(long), ErrFrameTooLong)

	assert.Len(t, ft.sent(), 1)
}

func TestSendMSCCommand_UsesChannelDefaults(t *testing.T) {
	ch, ft := newTestChannel(t, Config{DefaultCueList: "2"})

	require.NoError(t, ch.SendMSCCommand(contracts.MSCCommand{
		DeviceID: 0x01,
		Format:   codec.FormatLighting,
		Command:  codec.MSCGo,
		Cue:      &contracts.CueID{Number: "5"},
	}))
	require.Len(t, ft.sent(), 1)
	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0x02, 0x01, 0x01, '5', 0x00, '2', 0xF7}, ft.sent()[0])
}

func TestSendMSCCommand_NoneIsNoop(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})
	require.NoError(t, ch.SendMSCCommand(contracts.MSCCommand{DeviceID: 1, Command: codec.MSCNone}))
	assert.Empty(t, ft.sent())
}

func TestSendMMC(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})
	require.NoError(t, ch.SendMMC(codec.AllCall, codec.MMCStop))
	require.NoError(t, ch.SendMMCGoto(codec.AllCall, 41))

	sent := ft.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, codec.EncodeMMC(codec.AllCall, codec.MMCStop), sent[0])
	assert.Equal(t, byte(1), sent[1][10], "frame byte")
}

func TestSendAllNotesOff(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})
	require.NoError(t, ch.SendNoteOn(2, 60, 90))
	require.NoError(t, ch.SendNoteOn(2, 64, 90))

	require.NoError(t, ch.SendAllNotesOff(2))
	assert.Len(t, ft.sent(), 2+128)
	assert.Zero(t, ch.TrackedNote(2, 60))
	assert.Zero(t, ch.TrackedNote(2, 64))
}

func TestTransportFailureIsLoggedNotReturned(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	ft := &fakeTransport{fail: errors.New("cable pulled")}
	ch := NewChannel(ft, Config{Name: "desk"}, logger.New(zaptest.NewLogger(t)), m)

	require.NoError(t, ch.SendNoteOn(0, 60, 100))
	assert.Zero(t, ch.TrackedNote(0, 60), "failed write must not be tracked")
	require.NoError(t, ch.SendSysEx([]byte{0xF0, 0x01, 0xF7}))

	series, err := testutil.GatherAndCount(reg, "stagewire_midi_write_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	var buf lockedBuffer
	ch := NewChannel(NewWriterTransport("buf", &buf), Config{}, logger.New(zaptest.NewLogger(t)), nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if g%2 == 0 {
					_ = ch.SendNoteOn(uint8(g), uint8(i), 64)
				} else {
					_ = ch.SendMMC(codec.DeviceID(g), codec.MMCPlay)
				}
			}
		}(g)
	}
	wg.Wait()

	data := buf.Bytes()
	for len(data) > 0 {
		switch {
		case data[0]&0xF0 == 0x90:
			require.GreaterOrEqual(t, len(data), 3)
			data = data[3:]
		case data[0] == 0xF0:
			end := bytes.IndexByte(data, 0xF7)
			require.Equal(t, 5, end, "sysex interrupted by another message")
			data = data[end+1:]
		default:
			t.Fatalf("unexpected status byte 0x%02X", data[0])
		}
	}
}

func TestClose(t *testing.T) {
	ch, ft := newTestChannel(t, Config{})
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.True(t, ft.closed)
	assert.ErrorIs(t, ch.SendNoteOn(0, 1, 1), ErrClosed)
	assert.Empty(t, ft.sent())
}

func TestPatch(t *testing.T) {
	ch, _ := newTestChannel(t, Config{Name: "desk"})
	p := NewPatch()
	p.PatchMIDI("sound", ch)
	p.PatchPort("rig", contracts.DMXPort)

	got, err := p.MIDIOutput("sound")
	require.NoError(t, err)
	assert.Same(t, ch, got)

	_, err = p.MIDIOutput("rig")
	assert.ErrorIs(t, err, ErrNotMIDIOutput)

	_, err = p.MIDIOutput("missing")
	assert.ErrorIs(t, err, ErrUnpatched)

	kind, ok := p.Kind("rig")
	assert.True(t, ok)
	assert.Equal(t, contracts.DMXPort, kind)

	assert.Equal(t, []string{"rig", "sound"}, p.Names())
	require.NoError(t, p.CloseAll())
}

func TestPatch_OpensOnFirstUse(t *testing.T) {
	p := NewPatch()
	var opened []*fakeTransport
	p.PatchMIDIOpener("fx", func() (contracts.OutputChannel, error) {
		ft := &fakeTransport{}
		opened = append(opened, ft)
		return NewChannel(ft, Config{Name: "fx"}, logger.New(zaptest.NewLogger(t)), nil), nil
	})
	p.PatchMIDIOpener("broken", func() (contracts.OutputChannel, error) {
		return nil, errors.New("port busy")
	})
	assert.Empty(t, opened)

	first, err := p.MIDIOutput("fx")
	require.NoError(t, err)
	second, err := p.MIDIOutput("fx")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, opened, 1)

	_, err = p.MIDIOutput("broken")
	assert.ErrorContains(t, err, "port busy")

	require.NoError(t, p.CloseAll())
	assert.True(t, opened[0].closed)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Close() error { return nil }

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestListSerialPorts_NeutralKind(t *testing.T) {
	infos, err := listSerialPorts(func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "EN123456", Product: "DMX USB PRO"},
			{Name: "/dev/ttyS0"},
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "EN123456", infos[0].NativeID)
	assert.Equal(t, "/dev/ttyS0", infos[1].NativeID)
	for _, info := range infos {
		assert.Equal(t, contracts.SerialPort, info.Kind)
	}

	_, err = listSerialPorts(func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no sysfs") })
	assert.Error(t, err)
}
