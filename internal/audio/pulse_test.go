package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListLoopbackPrefersDefaultSinkMonitor(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-mic", Description: "USB Mic", Available: true, Default: true},
		{ID: "alsa_output.hdmi.monitor", Description: "Monitor of HDMI", Available: true, Monitor: true},
		{ID: "alsa_output.speakers.monitor", Description: "Monitor of Speakers", Available: true, Monitor: true, DefaultMonitor: true},
	}

	selection, err := selectDeviceFromList(devices, "loopback", "")
	require.NoError(t, err)
	require.Equal(t, "alsa_output.speakers.monitor", selection.Device.ID)
	require.Empty(t, selection.Warning)
}

func TestSelectDeviceFromListLoopbackFallsBackToAnyMonitor(t *testing.T) {
	devices := []Device{
		{ID: "mic", Available: true, Default: true},
		{ID: "alsa_output.hdmi.monitor", Available: true, Monitor: true},
	}

	selection, err := selectDeviceFromList(devices, "", "")
	require.NoError(t, err)
	require.Equal(t, "alsa_output.hdmi.monitor", selection.Device.ID)
}

func TestSelectDeviceFromListDefaultKeyword(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "default", "")
	require.NoError(t, err)
	require.Equal(t, "elgato", selection.Device.ID)
}

func TestSelectDeviceFromListMutedPrimaryUsesFallback(t *testing.T) {
	devices := []Device{
		{ID: "speakers.monitor", Available: true, Muted: true, Monitor: true, DefaultMonitor: true},
		{ID: "headset.monitor", Description: "Monitor of Headset", Available: true, Monitor: true},
	}

	selection, err := selectDeviceFromList(devices, "loopback", "headset")
	require.NoError(t, err)
	require.Equal(t, "headset.monitor", selection.Device.ID)
	require.Contains(t, selection.Warning, "muted")
	require.True(t, selection.Fallback)
}

func TestSelectDeviceFromListFailsWithoutUsableFallback(t *testing.T) {
	devices := []Device{
		{ID: "speakers.monitor", Available: true, Muted: true, Monitor: true, DefaultMonitor: true},
	}

	_, err := selectDeviceFromList(devices, "loopback", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")

	_, err = selectDeviceFromList(devices, "loopback", "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSelectDeviceFromListNoMonitor(t *testing.T) {
	devices := []Device{{ID: "mic", Available: true, Default: true}}

	_, err := selectDeviceFromList(devices, "loopback", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no sink monitor")
}

func TestSelectDeviceFromListUnknownInput(t *testing.T) {
	devices := []Device{{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true}}

	_, err := selectDeviceFromList(devices, "missing", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")

	_, err = selectDeviceFromList(nil, "loopback", "")
	require.Error(t, err)
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), "loopback", "")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{})) // no ports => available

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

type sourcePort struct {
	name      string
	available uint32
}

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
