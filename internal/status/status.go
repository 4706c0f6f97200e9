// Package status provides a thread-safe view of the controller runtime for
// the HTTP status page and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/runtime"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	KeepAliveMs int64
	Endpoint    string
	HTTPPort    string
}

// ConnectionStatus reports whether a broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// Controller is the last known state of one controller.
type Controller struct {
	ID          string
	Kind        string
	Value       control.Value
	Reading     string
	LastChange  time.Time // zero until the first emission
	Changes     int
	InputErrors int
	LastError   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controllers      []Controller
	Ticks            int64
	LastTick         time.Time
	PublishFailures  int
	LastPublishError string
	StartTime        time.Time
	Now              time.Time
	Connected        bool
	HasConnection    bool
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one tick has run.
func (s Snapshot) Ready() bool {
	return s.Ticks > 0
}

// Tracker holds mutable daemon state behind an RWMutex. It implements
// runtime.Observer.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
	conn  ConnectionStatus
	now   func() time.Time
}

// NewTracker creates a Tracker listing every controller in group in order,
// seeded with the decision each holds at startTime. Call it before the
// runtime starts.
func NewTracker(startTime time.Time, cfg Config, group *control.Group) *Tracker {
	t := &Tracker{
		snap:  Snapshot{StartTime: startTime, Config: cfg},
		index: make(map[string]int),
		now:   time.Now,
	}
	if group != nil {
		controllers := group.Controllers()
		for i, m := range group.Current(startTime) {
			t.index[m.ControllerID] = i
			t.snap.Controllers = append(t.snap.Controllers, Controller{
				ID:      m.ControllerID,
				Kind:    control.KindOf(controllers[i]),
				Value:   m.Value,
				Reading: m.Reading,
			})
		}
	}
	return t
}

// ObserveTick records the outcome of one tick.
func (t *Tracker) ObserveTick(res runtime.TickResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Ticks++
	t.snap.LastTick = res.At
	for _, m := range res.Messages {
		i, ok := t.index[m.ControllerID]
		if !ok {
			continue
		}
		c := &t.snap.Controllers[i]
		c.Value = m.Value
		if m.Reading != "" {
			c.Reading = m.Reading
		}
		if !m.KeepAlive {
			c.LastChange = m.Timestamp
			c.Changes++
		}
		c.LastError = ""
	}
	for _, f := range res.Failures {
		i, ok := t.index[f.ControllerID]
		if !ok {
			continue
		}
		c := &t.snap.Controllers[i]
		c.InputErrors++
		c.LastError = f.Err.Error()
	}
	if res.PublishErr != nil {
		t.snap.PublishFailures++
		t.snap.LastPublishError = res.PublishErr.Error()
	}
}

// SetConnectionStatus sets the source of the broker connection flag.
func (t *Tracker) SetConnectionStatus(cs ConnectionStatus) {
	t.mu.Lock()
	t.conn = cs
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Controllers = append([]Controller(nil), t.snap.Controllers...)
	conn := t.conn
	t.mu.RUnlock()
	if conn != nil {
		s.HasConnection = true
		s.Connected = conn.IsConnected()
	}
	s.Now = t.now()
	return s
}
