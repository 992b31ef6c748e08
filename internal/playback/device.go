package playback

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
)

// Device is a playback endpoint the coordinator observes and commands.
//
// Events are delivered in the order they occur. The channel stays open until Disconnect.
type Device interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Events() <-chan Event

	TogglePlay(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, volume float64) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
}

// Remote is the Web API surface used to move playback onto the device and to start a track on it.
type Remote interface {
	TransferPlayback(ctx context.Context, deviceID string) error
	PlayTrack(ctx context.Context, deviceID, uri string) error
}

// Event is one of [Ready], [NotReady], [StateChanged] or [DeviceError].
type Event interface {
	event()
}

// Ready signals the device is attached under DeviceID.
type Ready struct {
	DeviceID string
}

// NotReady signals the device went offline.
type NotReady struct {
	DeviceID string
}

// StateChanged carries the device's playback state. State is nil when the device has nothing loaded, for
// example after playback moved to another device.
type StateChanged struct {
	State *DeviceState
}

// ErrorKind classifies device failures.
type ErrorKind string

const (
	InitializationError ErrorKind = "initialization_error"
	AuthenticationError ErrorKind = "authentication_error"
	AccountError        ErrorKind = "account_error"
	PlaybackError       ErrorKind = "playback_error"
)

// DeviceError is a failure reported by the device.
type DeviceError struct {
	Kind    ErrorKind
	Message string
}

func (e DeviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets account errors match [shared.ErrPremiumRequired].
func (e DeviceError) Unwrap() error {
	if e.Kind == AccountError {
		return shared.ErrPremiumRequired
	}
	return nil
}

func (Ready) event()        {}
func (NotReady) event()     {}
func (StateChanged) event() {}
func (DeviceError) event()  {}

// DeviceState is a device's report of what it is playing.
type DeviceState struct {
	Track      models.Track
	PositionMs int
	DurationMs int
	Paused     bool
}
