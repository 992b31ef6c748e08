package device

import (
	"strings"

	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/tidwall/gjson"
)

// Inbound frame types.
const (
	frameReady        = "ready"
	frameNotReady     = "not_ready"
	frameState        = "state"
	frameError        = "error"
	frameTokenRequest = "token_request"
	frameResult       = "result"
)

// Outbound frame types.
const (
	frameInit    = "init"
	frameToken   = "token"
	frameCommand = "command"
)

// frame is the outbound wire shape. Unused fields are omitted.
type frame struct {
	Type       string   `json:"type"`
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Token      string   `json:"token,omitempty"`
	Error      string   `json:"error,omitempty"`
	Command    string   `json:"command,omitempty"`
	PositionMs *int     `json:"position_ms,omitempty"`
	Volume     *float64 `json:"volume,omitempty"`
}

// parseState reads an SDK WebPlaybackState. A missing or null state yields nil.
func parseState(data []byte) *playback.DeviceState {
	state := gjson.GetBytes(data, "state")
	if !state.Exists() || state.Type == gjson.Null {
		return nil
	}

	current := state.Get("track_window.current_track")
	var artists []string
	for _, a := range current.Get("artists.#.name").Array() {
		artists = append(artists, a.String())
	}

	track := models.Track{
		ID:         current.Get("id").String(),
		Name:       current.Get("name").String(),
		Artist:     strings.Join(artists, ", "),
		Album:      current.Get("album.name").String(),
		DurationMs: int(current.Get("duration_ms").Int()),
		URI:        current.Get("uri").String(),
	}

	duration := int(state.Get("duration").Int())
	if duration == 0 {
		duration = track.DurationMs
	}

	return &playback.DeviceState{
		Track:      track,
		PositionMs: int(state.Get("position").Int()),
		DurationMs: duration,
		Paused:     state.Get("paused").Bool(),
	}
}

// parseEvent maps an inbound frame onto a playback event. Frames that are not events return nil.
func parseEvent(data []byte) playback.Event {
	switch gjson.GetBytes(data, "type").String() {
	case frameReady:
		return playback.Ready{DeviceID: gjson.GetBytes(data, "device_id").String()}
	case frameNotReady:
		return playback.NotReady{DeviceID: gjson.GetBytes(data, "device_id").String()}
	case frameState:
		return playback.StateChanged{State: parseState(data)}
	case frameError:
		kind := playback.ErrorKind(gjson.GetBytes(data, "kind").String())
		if kind == "" {
			kind = playback.PlaybackError
		}
		return playback.DeviceError{Kind: kind, Message: gjson.GetBytes(data, "message").String()}
	default:
		return nil
	}
}
