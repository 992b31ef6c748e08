package playback

import (
	"fmt"
	"strings"
)

// IntentKind enumerates the user requests a coordinator accepts.
type IntentKind int

const (
	PlayTrack IntentKind = iota
	Toggle
	Seek
	SetVolume
	Next
	Previous
)

var intentNames = map[IntentKind]string{
	PlayTrack: "play",
	Toggle:    "toggle",
	Seek:      "seek",
	SetVolume: "volume",
	Next:      "next",
	Previous:  "previous",
}

func (k IntentKind) String() string {
	if name, ok := intentNames[k]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", int(k))
}

// ParseIntentKind maps a command name back to its kind.
func ParseIntentKind(name string) (IntentKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range intentNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Intent is a single user request. Only the field matching Kind is read.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	URI        string     `json:"uri,omitempty"`
	PositionMs int        `json:"position_ms,omitempty"`
	Volume     float64    `json:"volume,omitempty"`
}

func (i Intent) String() string {
	switch i.Kind {
	case PlayTrack:
		return fmt.Sprintf("play %s", i.URI)
	case Seek:
		return fmt.Sprintf("seek %dms", i.PositionMs)
	case SetVolume:
		return fmt.Sprintf("volume %.2f", i.Volume)
	default:
		return i.Kind.String()
	}
}

func PlayIntent(uri string) Intent { return Intent{Kind: PlayTrack, URI: uri} }
func ToggleIntent() Intent { return Intent{Kind: Toggle} }
func SeekIntent(positionMs int) Intent { return Intent{Kind: Seek, PositionMs: positionMs} }
func VolumeIntent(v float64) Intent { return Intent{Kind: SetVolume, Volume: v} }
func NextIntent() Intent { return Intent{Kind: Next} }
func PreviousIntent() Intent { return Intent{Kind: Previous} }
