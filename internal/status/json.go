package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Ready         bool             `json:"ready"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	Ticks         int64            `json:"ticks"`
	LastTick      string           `json:"last_tick,omitempty"`
	Controllers   []ControllerJSON `json:"controllers"`
	Emitter       EmitterJSON      `json:"emitter"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// ControllerJSON is the JSON representation of one controller.
type ControllerJSON struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	Reading     string `json:"reading,omitempty"`
	LastChange  string `json:"last_change,omitempty"`
	Changes     int    `json:"changes"`
	InputErrors int    `json:"input_errors"`
	LastError   string `json:"last_error,omitempty"`
}

// EmitterJSON reports the publishing target.
type EmitterJSON struct {
	Endpoint         string `json:"endpoint,omitempty"`
	Connected        *bool  `json:"connected,omitempty"`
	PublishFailures  int    `json:"publish_failures"`
	LastPublishError string `json:"last_publish_error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	KeepAliveMs int64  `json:"keep_alive_ms"`
	Endpoint    string `json:"endpoint"`
	HTTPPort    string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Ticks:         snap.Ticks,
		Controllers:   make([]ControllerJSON, 0, len(snap.Controllers)),
		Emitter: EmitterJSON{
			Endpoint:         snap.Config.Endpoint,
			PublishFailures:  snap.PublishFailures,
			LastPublishError: snap.LastPublishError,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			KeepAliveMs: snap.Config.KeepAliveMs,
			Endpoint:    snap.Config.Endpoint,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
	if !snap.LastTick.IsZero() {
		inner.LastTick = snap.LastTick.UTC().Format(time.RFC3339)
	}
	if snap.HasConnection {
		connected := snap.Connected
		inner.Emitter.Connected = &connected
	}
	for _, c := range snap.Controllers {
		cj := ControllerJSON{
			ID:          c.ID,
			Kind:        c.Kind,
			State:       c.Value.String(),
			Reading:     c.Reading,
			Changes:     c.Changes,
			InputErrors: c.InputErrors,
			LastError:   c.LastError,
		}
		if !c.LastChange.IsZero() {
			cj.LastChange = c.LastChange.UTC().Format(time.RFC3339)
		}
		inner.Controllers = append(inner.Controllers, cj)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
