// Package audio handles loopback source discovery, selection, and capture.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// InputLoopback selects the monitor of the default output sink.
	InputLoopback = "loopback"
	// InputDefault selects the default input source.
	InputDefault = "default"

	monitorSuffix = ".monitor"
)

// Device describes one Pulse source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
	// Monitor is true for sink monitor sources (what an output plays).
	Monitor bool
	// DefaultMonitor is true for the monitor of the default output sink.
	DefaultMonitor bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("livesub"),
		pulse.ClientApplicationIconName("media-view-subtitles"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns every Pulse source, marking defaults and sink monitors.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultID := ""
	if source, err := client.DefaultSource(); err == nil {
		defaultID = source.ID()
	}
	defaultMonitorID := ""
	if sink, err := client.DefaultSink(); err == nil {
		defaultMonitorID = sink.ID() + monitorSuffix
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:             source.SourceName,
			Description:    source.Device,
			State:          sourceStateString(source.State),
			Available:      sourceAvailable(source),
			Muted:          source.Mute,
			Default:        source.SourceName == defaultID,
			Monitor:        strings.HasSuffix(source.SourceName, monitorSuffix),
			DefaultMonitor: source.SourceName == defaultMonitorID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
// "loopback" and "default" are keywords; anything else matches by id or
// description substring.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio sources found")
	}

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))
	if input == "" {
		input = InputLoopback
	}

	primary, err := resolveDevice(devices, input)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q: %w", input, err)
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	if fallback == "" || fallback == input {
		return Selection{}, fmt.Errorf("primary input %q is %s and no fallback is configured", primary.ID, primaryReason)
	}
	fallbackDevice, err := resolveDevice(devices, fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q failed: %w", primary.ID, primaryReason, fallback, err)
	}
	if !fallbackDevice.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", fallbackDevice.ID)
	}
	if fallbackDevice.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", fallbackDevice.ID)
	}

	return Selection{
		Device:   *fallbackDevice,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primaryReason, fallbackDevice.ID),
		Fallback: primary.ID != fallbackDevice.ID,
	}, nil
}

func resolveDevice(devices []Device, term string) (*Device, error) {
	switch term {
	case InputLoopback:
		var firstMonitor *Device
		for i := range devices {
			if devices[i].DefaultMonitor {
				return &devices[i], nil
			}
			if firstMonitor == nil && devices[i].Monitor {
				firstMonitor = &devices[i]
			}
		}
		if firstMonitor != nil {
			return firstMonitor, nil
		}
		return nil, errors.New("no sink monitor source found")
	case InputDefault:
		for i := range devices {
			if devices[i].Default {
				return &devices[i], nil
			}
		}
		return nil, errors.New("default audio source is unavailable")
	default:
		for i := range devices {
			if deviceMatches(devices[i], term) {
				return &devices[i], nil
			}
		}
		return nil, errors.New("did not match any device")
	}
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
