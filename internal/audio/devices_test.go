package audio

import (
	"io"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectInputPrefersDefault(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-webcam", Description: "Webcam Mic", Available: true},
		{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3", Available: true, Default: true},
	}

	selected, err := selectInput(devices, "default")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-elgato", selected.ID)
}

func TestSelectInputByPreference(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3", Available: true, Default: true},
		{ID: "alsa_input.usb-webcam", Description: "Webcam Mic", Available: true},
	}

	selected, err := selectInput(devices, "webcam")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-webcam", selected.ID)
}

func TestSelectInputUnknownPreference(t *testing.T) {
	devices := []Device{{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3", Available: true}}

	_, err := selectInput(devices, "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSelectInputSkipsMonitorsAndUnavailable(t *testing.T) {
	devices := []Device{
		{ID: "alsa_output.pci.analog-stereo.monitor", Description: "Monitor of Speakers", Available: true, Default: true},
		{ID: "alsa_input.usb-headset", Description: "USB Headset", Available: false},
		{ID: "alsa_input.usb-webcam", Description: "Webcam Mic", Available: true},
	}

	selected, err := selectInput(devices, "")
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-webcam", selected.ID)
}

func TestSelectInputEmptyList(t *testing.T) {
	_, err := selectInput(nil, "default")
	require.Error(t, err)
}

func TestHasUsableInput(t *testing.T) {
	require.False(t, HasUsableInput(nil))
	require.False(t, HasUsableInput([]Device{
		{ID: "alsa_output.pci.analog-stereo.monitor", Available: true},
		{ID: "alsa_input.usb-headset", Available: false},
	}))
	require.True(t, HasUsableInput([]Device{
		{ID: "alsa_input.usb-headset", Available: true},
	}))
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestSourceAvailablePortStates(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	withPort := func(available uint32) *pulseproto.GetSourceInfoReply {
		reply := &pulseproto.GetSourceInfoReply{ActivePortName: "analog-input-mic"}
		setSourcePorts(t, reply, []sourcePort{{name: "analog-input-mic", available: available}})
		return reply
	}
	require.True(t, sourceAvailable(withPort(0)))
	require.False(t, sourceAvailable(withPort(1)))
	require.True(t, sourceAvailable(withPort(2)))
}

type sourcePort struct {
	name      string
	available uint32
}

// The Pulse port element type is unexported-anonymous, so tests build it
// reflectively.
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	replyValue := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	replyValue.Set(sliceValue)
}

func TestPCMStreamReadAndClose(t *testing.T) {
	stream := &pcmStream{
		chunks: make(chan []byte, 8),
		stopCh: make(chan struct{}),
	}

	n, err := stream.onPCM(make([]byte, chunkSizeBytes+10))
	require.NoError(t, err)
	require.Equal(t, chunkSizeBytes+10, n)

	buf := make([]byte, chunkSizeBytes)
	read, err := stream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, chunkSizeBytes, read)

	// Close flushes the 10 residual bytes before EOF.
	require.NoError(t, stream.Close())
	read, err = stream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 10, read)

	_, err = stream.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	// Further frames after close are refused.
	_, err = stream.onPCM(make([]byte, chunkSizeBytes))
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, stream.Close())
}

func TestPCMStreamShortReadKeepsLeftover(t *testing.T) {
	stream := &pcmStream{
		chunks: make(chan []byte, 8),
		stopCh: make(chan struct{}),
	}

	_, err := stream.onPCM(make([]byte, chunkSizeBytes))
	require.NoError(t, err)

	small := make([]byte, chunkSizeBytes/2)
	read, err := stream.Read(small)
	require.NoError(t, err)
	require.Equal(t, chunkSizeBytes/2, read)

	read, err = stream.Read(small)
	require.NoError(t, err)
	require.Equal(t, chunkSizeBytes/2, read)
}
