package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/services"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = time.Second
	driftTolerance      = 2 * time.Second
)

// ConnectOptions configures a [Connect] device.
type ConnectOptions struct {
	// Name selects the device, case-insensitively. Empty picks the active device.
	Name     string
	Interval time.Duration
	// Limit caps player requests across polls and command nudges. Zero means four per second.
	Limit  rate.Limit
	Clock  clockwork.Clock
	Logger *log.Logger
}

// Connect is a Spotify Connect device driven through the Web API.
type Connect struct {
	player   services.Player
	name     string
	interval time.Duration
	limiter  *rate.Limiter
	clock    clockwork.Clock
	logger   *log.Logger

	events chan playback.Event
	poke   chan struct{}

	mu       sync.Mutex
	deviceID string
	present  bool
	last     *playback.DeviceState
	lastAt   time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool

	// set while Connect runs
	connecting  chan struct{}
	stopConnect context.CancelFunc
}

// NewConnect creates a device backed by player.
func NewConnect(player services.Player, opts ConnectOptions) *Connect {
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.Limit == 0 {
		opts.Limit = rate.Every(250 * time.Millisecond)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Connect{
		player:   player,
		name:     strings.TrimSpace(opts.Name),
		interval: opts.Interval,
		limiter:  rate.NewLimiter(opts.Limit, 1),
		clock:    opts.Clock,
		logger:   shared.WithLogger(opts.Logger, "device", "connect"),
		events:   make(chan playback.Event, eventBuffer),
		poke:     make(chan struct{}, 1),
	}
}

// Connect resolves the target device, reports it ready and starts polling.
//
// A 403 from the player endpoints is reported as an account_error event and returned as [shared.ErrPremiumRequired].
func (d *Connect) Connect(ctx context.Context) error {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return shared.ErrClosed
	case d.cancel != nil, d.connecting != nil:
		d.mu.Unlock()
		return nil
	}
	ctx, stop := context.WithCancel(ctx)
	connecting := make(chan struct{})
	d.connecting, d.stopConnect = connecting, stop
	d.mu.Unlock()

	defer func() {
		stop()
		d.mu.Lock()
		d.connecting, d.stopConnect = nil, nil
		d.mu.Unlock()
		close(connecting)
	}()

	target, err := d.resolve(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return shared.ErrClosed
	}
	if err != nil {
		d.mu.Unlock()
		d.fail(ctx, err)
		return err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	d.deviceID, d.present = target.ID, true
	d.cancel, d.done = cancel, make(chan struct{})
	done := d.done
	d.mu.Unlock()

	d.logger.Info("device selected", "name", target.Name, "id", target.ID, "type", target.Type)
	d.emit(ctx, playback.Ready{DeviceID: target.ID})

	go d.poll(runCtx, done)
	return nil
}

// Disconnect stops polling and closes the event channel.
func (d *Connect) Disconnect() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	connecting, stopConnect := d.connecting, d.stopConnect
	d.mu.Unlock()

	if stopConnect != nil {
		stopConnect()
		<-connecting
	}

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	close(d.events)
	return nil
}

func (d *Connect) Events() <-chan playback.Event { return d.events }

// DeviceID returns the resolved device id, empty before Connect.
func (d *Connect) DeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceID
}

func (d *Connect) resolve(ctx context.Context) (models.Device, error) {
	devices, err := d.player.Devices(ctx)
	if err != nil {
		return models.Device{}, err
	}

	var active []models.Device
	for _, dev := range devices {
		if d.name != "" && strings.EqualFold(dev.Name, d.name) {
			return dev, nil
		}
		if dev.Active {
			active = append(active, dev)
		}
	}

	switch {
	case d.name != "":
		return models.Device{}, fmt.Errorf("%w: no device named %q", shared.ErrDeviceNotFound, d.name)
	case len(active) > 0:
		return active[0], nil
	case len(devices) == 1:
		return devices[0], nil
	default:
		return models.Device{}, fmt.Errorf("%w: no active device, pass a device name", shared.ErrDeviceNotFound)
	}
}

func (d *Connect) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		case <-d.poke:
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		d.refresh(ctx)
	}
}

// refresh fetches the player state and emits what changed since the last poll.
func (d *Connect) refresh(ctx context.Context) {
	pb, err := d.player.CurrentPlayback(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.fail(ctx, err)
		}
		return
	}

	d.mu.Lock()
	deviceID := d.deviceID
	d.mu.Unlock()

	if pb == nil || pb.Device.ID != deviceID {
		d.elsewhere(ctx, deviceID)
		return
	}

	d.setPresent(ctx, deviceID, true)

	state := deviceState(pb)
	now := d.clock.Now()

	d.mu.Lock()
	changed := d.changed(state, now)
	if changed {
		d.last, d.lastAt = state, now
	}
	d.mu.Unlock()

	if changed {
		d.emit(ctx, playback.StateChanged{State: state})
	}
}

// elsewhere handles a poll where the device is not the one playing: it either vanished or is idle.
func (d *Connect) elsewhere(ctx context.Context, deviceID string) {
	devices, err := d.player.Devices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.fail(ctx, err)
		}
		return
	}

	found := false
	for _, dev := range devices {
		if dev.ID == deviceID {
			found = true
			break
		}
	}

	if !found {
		d.setPresent(ctx, deviceID, false)
		return
	}
	d.setPresent(ctx, deviceID, true)

	d.mu.Lock()
	hadState := d.last != nil
	d.last = nil
	d.mu.Unlock()

	if hadState {
		d.emit(ctx, playback.StateChanged{State: nil})
	}
}

func (d *Connect) setPresent(ctx context.Context, deviceID string, present bool) {
	d.mu.Lock()
	if d.present == present {
		d.mu.Unlock()
		return
	}
	d.present = present
	if !present {
		d.last = nil
	}
	d.mu.Unlock()

	if present {
		d.logger.Info("device is back", "id", deviceID)
		d.emit(ctx, playback.Ready{DeviceID: deviceID})
		return
	}
	d.logger.Warn("device disappeared", "id", deviceID)
	d.emit(ctx, playback.NotReady{DeviceID: deviceID})
}

// changed compares state against the last report, allowing for the playhead moving while playing. Caller holds mu.
func (d *Connect) changed(state *playback.DeviceState, now time.Time) bool {
	last := d.last
	if last == nil {
		return true
	}
	if state.Track.URI != last.Track.URI || state.Paused != last.Paused || state.DurationMs != last.DurationMs {
		return true
	}

	expected := last.PositionMs
	if !last.Paused {
		expected += int(now.Sub(d.lastAt) / time.Millisecond)
		if last.DurationMs > 0 {
			expected = min(expected, last.DurationMs)
		}
	}
	drift := time.Duration(state.PositionMs-expected) * time.Millisecond
	return drift > driftTolerance || drift < -driftTolerance
}

// fail reports capability errors as device error events and logs the rest.
func (d *Connect) fail(ctx context.Context, err error) {
	switch {
	case errors.Is(err, shared.ErrPremiumRequired):
		d.emit(ctx, playback.DeviceError{Kind: playback.AccountError, Message: err.Error()})
	case errors.Is(err, shared.ErrAuthenticationFailed), errors.Is(err, shared.ErrNotAuthenticated):
		d.emit(ctx, playback.DeviceError{Kind: playback.AuthenticationError, Message: err.Error()})
	default:
		d.logger.Warn("player poll failed", "error", err)
	}
}

func (d *Connect) emit(ctx context.Context, ev playback.Event) {
	select {
	case d.events <- ev:
	case <-ctx.Done():
	}
}

// nudge schedules an early poll so command results show up before the next tick.
func (d *Connect) nudge() {
	select {
	case d.poke <- struct{}{}:
	default:
	}
}

func (d *Connect) target() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", shared.ErrClosed
	}
	if d.deviceID == "" || !d.present {
		return "", shared.ErrDeviceNotReady
	}
	return d.deviceID, nil
}

func (d *Connect) run(ctx context.Context, fn func(ctx context.Context, deviceID string) error) error {
	id, err := d.target()
	if err != nil {
		return err
	}
	if err := fn(ctx, id); err != nil {
		return err
	}
	d.nudge()
	return nil
}

// TogglePlay pauses when the last poll saw playback and resumes otherwise.
func (d *Connect) TogglePlay(ctx context.Context) error {
	d.mu.Lock()
	playing := d.last != nil && !d.last.Paused
	d.mu.Unlock()

	if playing {
		return d.run(ctx, d.player.Pause)
	}
	return d.run(ctx, d.player.Resume)
}

func (d *Connect) Seek(ctx context.Context, positionMs int) error {
	return d.run(ctx, func(ctx context.Context, id string) error {
		return d.player.Seek(ctx, id, positionMs)
	})
}

func (d *Connect) SetVolume(ctx context.Context, volume float64) error {
	percent := int(math.Round(min(max(volume, 0), 1) * 100))
	return d.run(ctx, func(ctx context.Context, id string) error {
		return d.player.SetVolume(ctx, id, percent)
	})
}

func (d *Connect) NextTrack(ctx context.Context) error {
	return d.run(ctx, d.player.Next)
}

func (d *Connect) PreviousTrack(ctx context.Context) error {
	return d.run(ctx, d.player.Previous)
}

func deviceState(pb *models.Playback) *playback.DeviceState {
	state := &playback.DeviceState{
		PositionMs: pb.ProgressMs,
		Paused:     !pb.IsPlaying,
	}
	if pb.Track != nil {
		state.Track = *pb.Track
		state.DurationMs = pb.Track.DurationMs
	}
	return state
}

var _ playback.Device = (*Connect)(nil)
