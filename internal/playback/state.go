package playback

import "github.com/desertthunder/spotui/internal/models"

// Node is the coordinator's lifecycle position.
type Node int

const (
	Uninitialized Node = iota
	Inactive
	Active
)

func (n Node) String() string {
	switch n {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return "uninitialized"
	}
}

// PlayerState is the observed device state. PositionMs never exceeds DurationMs while DurationMs > 0.
type PlayerState struct {
	IsReady         bool         `json:"is_ready"`
	IsActive        bool         `json:"is_active"`
	IsPlaying       bool         `json:"is_playing"`
	CurrentTrackURI string       `json:"current_track_uri"`
	Track           models.Track `json:"track"`
	PositionMs      int          `json:"position_ms"`
	DurationMs      int          `json:"duration_ms"`
	Volume          float64      `json:"volume"`
	DeviceID        string       `json:"device_id"`
}

// Progress returns the playhead as a fraction in [0, 1].
func (s PlayerState) Progress() float64 {
	if s.DurationMs <= 0 {
		return 0
	}
	return float64(s.PositionMs) / float64(s.DurationMs)
}

// DesiredState is what was last asked for.
type DesiredState struct {
	TrackURI string  `json:"track_uri"`
	Pending  *Intent `json:"pending,omitempty"`
}

// State is a snapshot of the coordinator.
type State struct {
	Node             Node         `json:"-"`
	Observed         PlayerState  `json:"observed"`
	Desired          DesiredState `json:"desired"`
	LastConfirmedURI string       `json:"last_confirmed_uri"`
	InFlight         bool         `json:"in_flight"`
	Degraded         bool         `json:"degraded"`
	LastError        string       `json:"last_error,omitempty"`
}

// Reconciled reports whether the device is playing what was last asked for.
func (s State) Reconciled() bool {
	return s.Desired.TrackURI == "" || s.Desired.TrackURI == s.Observed.CurrentTrackURI
}

// NotificationKind tags a [Notification].
type NotificationKind int

const (
	StateUpdated NotificationKind = iota
	TrackChanged
	PositionChanged
	Connected
	ErrorReported
)

func (k NotificationKind) String() string {
	switch k {
	case TrackChanged:
		return "track_changed"
	case PositionChanged:
		return "position_changed"
	case Connected:
		return "connected"
	case ErrorReported:
		return "error"
	default:
		return "state_updated"
	}
}

// Notification is published to [Coordinator.Notifications]. URI is set for TrackChanged, Err for ErrorReported.
type Notification struct {
	Kind  NotificationKind
	State PlayerState
	URI   string
	Err   error
}
