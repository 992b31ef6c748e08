package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
)

// Dispatch validates and runs intent.
//
// While Active the intent runs immediately. While Inactive playback is transferred first and, after the settle
// delay, the latest intent received in the meantime is run; intents arriving during that window replace the
// pending one and return nil.
func (c *Coordinator) Dispatch(ctx context.Context, intent Intent) error {
	if intent.Kind == SetVolume {
		intent.Volume = clamp01(intent.Volume)
	}
	if intent.Kind == PlayTrack {
		intent.URI = strings.TrimSpace(intent.URI)
		if intent.URI == "" {
			return fmt.Errorf("%w: track uri", shared.ErrInvalidArgument)
		}
	}

	c.mu.Lock()
	if err := c.admit(intent); err != nil {
		c.mu.Unlock()
		return err
	}

	switch {
	case c.transferring:
		c.park(intent)
		c.mu.Unlock()
		c.logger.Debug("intent parked during transfer", "intent", intent)
		return nil

	case c.node == Inactive:
		c.park(intent)
		c.transferring = true
		c.mu.Unlock()
		return c.transferAndReplay(ctx)

	default:
		c.mu.Unlock()
		return c.execute(ctx, intent)
	}
}

// PlayTrack plays uri, or toggles when uri is already loaded.
func (c *Coordinator) PlayTrack(ctx context.Context, uri string) error {
	return c.Dispatch(ctx, PlayIntent(uri))
}

// Toggle pauses or resumes.
func (c *Coordinator) Toggle(ctx context.Context) error {
	return c.Dispatch(ctx, ToggleIntent())
}

// Seek moves the playhead, clamped to the track length.
func (c *Coordinator) Seek(ctx context.Context, positionMs int) error {
	return c.Dispatch(ctx, SeekIntent(positionMs))
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Coordinator) SetVolume(ctx context.Context, volume float64) error {
	return c.Dispatch(ctx, VolumeIntent(volume))
}

// Next skips forward.
func (c *Coordinator) Next(ctx context.Context) error {
	return c.Dispatch(ctx, NextIntent())
}

// Previous skips back.
func (c *Coordinator) Previous(ctx context.Context) error {
	return c.Dispatch(ctx, PreviousIntent())
}

// Activate transfers playback to the device without a pending intent. It is a no-op when already active or while
// a transfer is running.
func (c *Coordinator) Activate(ctx context.Context) error {
	c.mu.Lock()
	if err := c.admit(Intent{Kind: Toggle}); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.node == Active || c.transferring {
		c.mu.Unlock()
		return nil
	}
	c.transferring = true
	c.mu.Unlock()

	return c.transferAndReplay(ctx)
}

// autoActivate fires after a Ready event.
func (c *Coordinator) autoActivate() {
	c.mu.Lock()
	c.autoTransfer = nil
	skip := c.closed || c.degraded || !c.observed.IsReady || c.node != Inactive
	c.mu.Unlock()

	if skip {
		return
	}
	if err := c.Activate(c.ctx); err != nil {
		c.logger.Warn("automatic transfer failed", "error", err)
	}
}

// SetCurrentTrack schedules a debounced play of uri for list selection.
//
// Each call replaces the pending one. At fire time the dispatch is skipped unless the device is ready and active,
// uri is not the last confirmed track and no play is in flight.
func (c *Coordinator) SetCurrentTrack(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.desired.TrackURI = uri
	c.debounceGen++
	gen := c.debounceGen

	stopTimer(c.debounce)
	c.debounce = c.clock.AfterFunc(c.opts.Debounce, func() { c.fireCurrentTrack(gen, uri) })
}

func (c *Coordinator) fireCurrentTrack(gen uint64, uri string) {
	c.mu.Lock()
	if gen != c.debounceGen {
		c.mu.Unlock()
		return
	}
	c.debounce = nil

	ok := !c.closed &&
		!c.degraded &&
		c.observed.IsReady &&
		c.node == Active &&
		!c.transferring &&
		!c.inFlight &&
		uri != "" &&
		uri != c.lastConfirmed
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("debounced dispatch skipped", "uri", uri)
		return
	}

	if err := c.play(c.ctx, uri); err != nil {
		c.logger.Debug("debounced dispatch failed", "uri", uri, "error", err)
	}
}

// admit rejects intents the current state cannot serve. Caller holds mu.
func (c *Coordinator) admit(intent Intent) error {
	switch {
	case c.closed:
		return shared.ErrClosed
	case c.degraded:
		return shared.ErrPremiumRequired
	case c.node == Uninitialized || !c.observed.IsReady || c.observed.DeviceID == "":
		return shared.ErrDeviceNotReady
	case intent.Kind == Seek && c.observed.DurationMs <= 0:
		return shared.ErrNotSeekable
	}
	return nil
}

// park makes intent the pending one. Caller holds mu.
func (c *Coordinator) park(intent Intent) {
	c.desired.Pending = &intent
	if intent.Kind == PlayTrack {
		c.desired.TrackURI = intent.URI
	}
}

// transferAndReplay moves playback to the device and then runs the latest pending intent after the settle delay.
// Caller has set transferring.
func (c *Coordinator) transferAndReplay(ctx context.Context) error {
	c.mu.Lock()
	deviceID := c.observed.DeviceID
	c.mu.Unlock()

	c.logger.Debug("transferring playback", "device_id", deviceID)

	if err := c.remote.TransferPlayback(ctx, deviceID); err != nil {
		c.mu.Lock()
		c.transferring = false
		c.desired.Pending = nil
		c.mu.Unlock()

		if !errors.Is(err, shared.ErrTransferFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrTransferFailed, err)
		}
		c.report(err)
		return err
	}

	c.mu.Lock()
	if c.observed.IsReady && c.observed.DeviceID == deviceID {
		c.node = Active
		c.observed.IsActive = true
	}
	state := c.observed
	c.mu.Unlock()

	c.logger.Info("playback transferred", "device_id", deviceID)
	c.publish(Notification{Kind: Connected, State: state})

	// Every parked intent waits out the settle delay.
	c.mu.Lock()
	if c.desired.Pending == nil {
		c.transferring = false
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.sleep(ctx, c.opts.Settle)

	c.mu.Lock()
	pending := c.desired.Pending
	c.desired.Pending = nil
	c.transferring = false
	c.mu.Unlock()

	if err != nil || pending == nil {
		return err
	}

	c.logger.Debug("replaying intent", "intent", *pending)
	return c.execute(ctx, *pending)
}

// execute forwards intent to the device. Failures are reported and returned.
func (c *Coordinator) execute(ctx context.Context, intent Intent) error {
	switch intent.Kind {
	case PlayTrack:
		return c.play(ctx, intent.URI)
	case Toggle:
		return c.command(ctx, Toggle, c.device.TogglePlay)
	case Seek:
		return c.seek(ctx, intent.PositionMs)
	case SetVolume:
		return c.setVolume(ctx, intent.Volume)
	case Next:
		return c.command(ctx, Next, c.device.NextTrack)
	case Previous:
		return c.command(ctx, Previous, c.device.PreviousTrack)
	default:
		return fmt.Errorf("%w: unknown intent %v", shared.ErrInvalidArgument, intent.Kind)
	}
}

func (c *Coordinator) play(ctx context.Context, uri string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return shared.ErrBusy
	}
	if uri == c.observed.CurrentTrackURI {
		c.mu.Unlock()
		c.logger.Debug("track already loaded, toggling", "uri", uri)
		return c.command(ctx, Toggle, c.device.TogglePlay)
	}

	c.inFlight = true
	c.inFlightURI = uri
	c.desired.TrackURI = uri
	deviceID := c.observed.DeviceID
	c.mu.Unlock()

	err := c.remote.PlayTrack(ctx, deviceID, uri)

	c.mu.Lock()
	c.inFlight = false
	c.inFlightURI = ""
	if err == nil {
		c.lastConfirmed = uri
	}
	state := c.observed
	c.mu.Unlock()

	if err != nil {
		err = commandError(PlayTrack, err)
		c.report(err)
		return err
	}

	// Until the device echoes the new track its metadata is unknown.
	if state.CurrentTrackURI != uri {
		state.CurrentTrackURI = uri
		state.Track = models.Track{URI: uri}
		state.PositionMs, state.DurationMs = 0, 0
	}
	c.publish(Notification{Kind: TrackChanged, State: state, URI: uri})
	return nil
}

func (c *Coordinator) seek(ctx context.Context, positionMs int) error {
	c.mu.Lock()
	if c.observed.DurationMs <= 0 {
		c.mu.Unlock()
		return shared.ErrNotSeekable
	}
	pos := c.clampPosition(positionMs)
	c.mu.Unlock()

	if err := c.device.Seek(ctx, pos); err != nil {
		err = commandError(Seek, err)
		c.report(err)
		return err
	}

	c.mu.Lock()
	c.observed.PositionMs = c.clampPosition(pos)
	state := c.observed
	c.mu.Unlock()

	c.publish(Notification{Kind: PositionChanged, State: state})
	return nil
}

func (c *Coordinator) setVolume(ctx context.Context, volume float64) error {
	volume = clamp01(volume)

	if err := c.device.SetVolume(ctx, volume); err != nil {
		err = commandError(SetVolume, err)
		c.report(err)
		return err
	}

	c.mu.Lock()
	c.observed.Volume = volume
	state := c.observed
	c.mu.Unlock()

	c.publish(Notification{Kind: StateUpdated, State: state})
	return nil
}

func (c *Coordinator) command(ctx context.Context, kind IntentKind, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		err = commandError(kind, err)
		c.report(err)
		return err
	}
	return nil
}

// commandError keeps capability sentinels visible and tags everything else as a failed command.
func commandError(kind IntentKind, err error) error {
	switch {
	case errors.Is(err, shared.ErrPremiumRequired),
		errors.Is(err, shared.ErrDeviceNotReady),
		errors.Is(err, shared.ErrDeviceNotFound),
		errors.Is(err, shared.ErrAuthenticationFailed),
		errors.Is(err, shared.ErrCommandFailed):
		return fmt.Errorf("%s: %w", kind, err)
	default:
		return fmt.Errorf("%w: %s: %w", shared.ErrCommandFailed, kind, err)
	}
}
