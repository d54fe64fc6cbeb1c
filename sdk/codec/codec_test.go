package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChannelMessage(t *testing.T) {
	kind, ch := DecodeChannelMessage(0x93)
	assert.Equal(t, KindNoteOn, kind)
	assert.Equal(t, Channel(3), ch)

	kind, ch = DecodeChannelMessage(0xBF)
	assert.Equal(t, KindControlChange, kind)
	assert.Equal(t, Channel(15), ch)
	assert.Equal(t, "ControlChange", kind.String())
}

func TestShortMessages(t *testing.T) {
	assert.Equal(t, []byte{0x92, 60, 100}, NoteOn(2, 60, 100))
	assert.Equal(t, []byte{0x80, 60, 0}, NoteOff(0, 60))
	assert.Equal(t, []byte{0xB1, 7, 127}, ControlChange(1, 7, 127))
	assert.Equal(t, []byte{0xC0, 5}, ProgramChange(0, 5))
}

func TestShortMessages_MaskDataBytes(t *testing.T) {
	msg := ControlChange(0, 0x87, 0xFF)
	assert.Equal(t, byte(0xB0), msg[0], "status byte must not be masked")
	assert.Equal(t, byte(0x07), msg[1])
	assert.Equal(t, byte(0x7F), msg[2])

	assert.Equal(t, []byte{0xC0, 0x01}, ProgramChange(0, 129))
}

func TestEncodeMSC_NoneProducesNothing(t *testing.T) {
	cue := &CueID{Number: "1", List: "2", Path: "3"}
	for _, dev := range []DeviceID{0x00, 0x45, 0x70, AllCall} {
		for _, format := range []CommandFormat{FormatLighting, FormatSound, FormatAllTypes} {
			assert.Empty(t, EncodeMSC(dev, format, MSCNone, cue, "9", "9"))
			assert.Empty(t, EncodeMSC(dev, format, MSCNone, nil, "", ""))
			assert.Empty(t, EncodeMSC(dev, format, MSCCommand(0x80), cue, "", ""), "masks to none")
		}
	}
}

func TestEncodeMSC_NoCue(t *testing.T) {
	got := EncodeMSC(0x01, FormatLighting, MSCGo, nil, "1", "")
	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0x02, 0x01, 0x01, 0xF7}, got)
}

func TestEncodeMSC_EmptyCueNumberSkipsCueData(t *testing.T) {
	got := EncodeMSC(0x01, FormatLighting, MSCGo, &CueID{List: "4"}, "1", "2")
	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0x02, 0x01, 0x01, 0xF7}, got)
}

func TestEncodeMSC_CueWithDefaults(t *testing.T) {
	got := EncodeMSC(0x05, FormatSound, MSCGo, &CueID{Number: "12.5"}, "3", "7")
	want := []byte{
		0xF0, 0x7F, 0x05, 0x02, 0x10, 0x01,
		'1', '2', '.', '5', 0x00, '3', 0x00, '7',
		0xF7,
	}
	assert.Equal(t, want, got)
}

func TestEncodeMSC_ExplicitCueOverridesDefaults(t *testing.T) {
	got := EncodeMSC(0x05, FormatLighting, MSCStop, &CueID{Number: "1", List: "2"}, "9", "")
	assert.Equal(t, []byte{0xF0, 0x7F, 0x05, 0x02, 0x01, 0x02, '1', 0x00, '2', 0xF7}, got)
}

func TestEncodeMSC_MasksDeviceAndFormat(t *testing.T) {
	got := EncodeMSC(0xFF, CommandFormat(0x81), MSCCommand(0x81), nil, "", "")
	assert.Equal(t, []byte{0xF0, 0x7F, 0x7F, 0x02, 0x01, 0x01, 0xF7}, got)
}

func TestEncodeMSC_OversizedCueIsOmitted(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = '1'
	}
	got := EncodeMSC(0x01, FormatLighting, MSCGo, &CueID{Number: string(long)}, "", "")
	assert.LessOrEqual(t, len(got), MaxSysExLength)
	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0x02, 0x01, 0x01, 0xF7}, got)
}

func TestEncodeMSC_CueAtLimitIsKept(t *testing.T) {
	num := make([]byte, MaxSysExLength-mscHeaderSize-1)
	for i := range num {
		num[i] = '2'
	}
	got := EncodeMSC(0x01, FormatLighting, MSCGo, &CueID{Number: string(num)}, "", "")
	assert.Len(t, got, MaxSysExLength)
}

func TestDecodeMSC(t *testing.T) {
	frame := EncodeMSC(0x10, FormatLighting, MSCGo, &CueID{Number: "4", List: "1", Path: "2"}, "", "")
	msg, err := DecodeMSC(frame)
	require.NoError(t, err)
	assert.Equal(t, DeviceID(0x10), msg.Device)
	assert.Equal(t, FormatLighting, msg.Format)
	assert.Equal(t, MSCGo, msg.Command)
	require.NotNil(t, msg.Cue)
	assert.Equal(t, CueID{Number: "4", List: "1", Path: "2"}, *msg.Cue)

	_, err = DecodeMSC(EncodeMMC(0x10, MMCPlay))
	assert.ErrorIs(t, err, ErrNotMSC)

	_, err = DecodeMSC(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestParseCommands(t *testing.T) {
	cmd, err := ParseMSCCommand("all_off")
	require.NoError(t, err)
	assert.Equal(t, MSCAllOff, cmd)

	_, err = ParseMSCCommand("dance")
	assert.Error(t, err)

	mmc, err := ParseMMCCommand("play")
	require.NoError(t, err)
	assert.Equal(t, MMCPlay, mmc)
}

func TestDeviceIDClasses(t *testing.T) {
	assert.False(t, DeviceID(0x6F).IsGroup())
	assert.True(t, DeviceID(0x70).IsGroup())
	assert.True(t, DeviceID(0x7E).IsGroup())
	assert.False(t, AllCall.IsGroup())
	assert.True(t, AllCall.IsAllCall())
}

func TestEncodeMMC(t *testing.T) {
	assert.Equal(t, []byte{0xF0, 0x7F, 0x7F, 0x06, 0x02, 0xF7}, EncodeMMC(AllCall, MMCPlay))
	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0x06, 0x01, 0xF7}, EncodeMMC(0x81, MMCStop))
}

func TestMillisToTimecode(t *testing.T) {
	cases := []struct {
		ms   uint32
		want Timecode
	}{
		{0, Timecode{}},
		{40, Timecode{}},
		{41, Timecode{Frames: 1}},
		{3_661_040, Timecode{Hours: 1, Minutes: 1, Seconds: 1}},
		{3_661_041, Timecode{Hours: 1, Minutes: 1, Seconds: 1, Frames: 1}},
		{59_999, Timecode{Seconds: 59, Frames: 39}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MillisToTimecode(tc.ms), "ms=%d", tc.ms)
	}
}

func TestEncodeMMCGoto(t *testing.T) {
	got := EncodeMMCGoto(0x02, 3_661_041)
	want := []byte{0xF0, 0x7F, 0x02, 0x06, 0x44, 0x06, 0x01, 1, 1, 1, 1, 0x00, 0xF7}
	assert.Equal(t, want, got)

	for _, b := range EncodeMMCGoto(0x02, 200*msPerHour)[1:12] {
		assert.LessOrEqual(t, b, byte(0x7F))
	}
}
