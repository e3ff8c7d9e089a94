// Package audio handles microphone discovery, selection, and the PCM
// capture stream fed to the recognition engine.
package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// ListDevices returns the Pulse input sources with default/availability
// metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("undertone"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

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
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// HasUsableInput reports whether any listed source could feed recognition.
// Monitor sources mirror speaker output and do not count as microphones.
func HasUsableInput(devices []Device) bool {
	for _, dev := range devices {
		if dev.Available && !isMonitor(dev) {
			return true
		}
	}
	return false
}

// selectInput picks the capture source: an explicit preference first, then
// the server default, then any available microphone.
func selectInput(devices []Device, preferred string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("no audio input devices found")
	}

	preferred = strings.TrimSpace(strings.ToLower(preferred))
	if preferred != "" && preferred != "default" {
		for _, dev := range devices {
			if deviceMatches(dev, preferred) {
				if !dev.Available {
					return Device{}, fmt.Errorf("audio input %q is unavailable", dev.ID)
				}
				return dev, nil
			}
		}
		return Device{}, fmt.Errorf("audio input %q did not match any device", preferred)
	}

	for _, dev := range devices {
		if dev.Default && dev.Available && !isMonitor(dev) {
			return dev, nil
		}
	}
	for _, dev := range devices {
		if dev.Available && !isMonitor(dev) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("no usable audio input device")
}

// deviceMatches reports whether a search term matches a device id or
// description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

func isMonitor(device Device) bool {
	return strings.HasSuffix(strings.ToLower(device.ID), ".monitor")
}

// sourceStateString maps Pulse source state constants to readable values.
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

// sourceAvailable maps Pulse source port availability to a boolean.
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
