package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spotui/internal/models"
)

// fakeDevice records commands and lets tests push events.
type fakeDevice struct {
	events chan Event

	mu          sync.Mutex
	calls       []string
	errs        map[string]error
	connectErr  error
	connects    int
	disconnects int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{events: make(chan Event, 32), errs: make(map[string]error)}
}

func (d *fakeDevice) Connect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	return d.connectErr
}

func (d *fakeDevice) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
	return nil
}

func (d *fakeDevice) Events() <-chan Event { return d.events }

func (d *fakeDevice) TogglePlay(context.Context) error { return d.record("toggle", "toggle") }

func (d *fakeDevice) Seek(_ context.Context, positionMs int) error {
	return d.record("seek", fmt.Sprintf("seek %d", positionMs))
}

func (d *fakeDevice) SetVolume(_ context.Context, volume float64) error {
	return d.record("volume", fmt.Sprintf("volume %.2f", volume))
}

func (d *fakeDevice) NextTrack(context.Context) error { return d.record("next", "next") }

func (d *fakeDevice) PreviousTrack(context.Context) error { return d.record("previous", "previous") }

func (d *fakeDevice) record(op, call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	return d.errs[op]
}

func (d *fakeDevice) fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[op] = err
}

func (d *fakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) counts() (connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects
}

func playing(uri string, positionMs, durationMs int) *DeviceState {
	return &DeviceState{
		Track:      models.Track{URI: uri, Name: "Track " + uri, DurationMs: durationMs},
		PositionMs: positionMs,
		DurationMs: durationMs,
	}
}

func paused(uri string, positionMs, durationMs int) *DeviceState {
	s := playing(uri, positionMs, durationMs)
	s.Paused = true
	return s
}
