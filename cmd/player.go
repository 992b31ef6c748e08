package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotui/internal/device"
	"github.com/desertthunder/spotui/internal/formatter"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/urfave/cli/v3"
)

const readyTimeout = 10 * time.Second

// connectPlayer starts a coordinator over a Connect device and waits until the device is ready and its first
// state has been observed. The caller must Close the coordinator.
func (r *Runner) connectPlayer(ctx context.Context, cmd *cli.Command) (*playback.Coordinator, error) {
	if err := r.signedIn(); err != nil {
		return nil, err
	}

	cfg := r.config.Player
	name := cmd.String("device")
	if name == "" {
		name = cfg.DeviceName
	}

	dev := device.NewConnect(r.spotify, device.ConnectOptions{
		Name:     name,
		Interval: cfg.PollInterval,
		Logger:   r.logger,
	})

	opts := playback.OptionsFrom(cfg)
	opts.AutoTransfer = 0
	opts.Logger = r.logger
	player := playback.New(dev, r.spotify, opts)

	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := player.Start(ctx); err != nil {
		player.Close()
		return nil, err
	}
	if err := player.WaitReady(ctx); err != nil {
		player.Close()
		return nil, err
	}

	r.awaitState(ctx, player, cfg.PollInterval)
	return player, nil
}

// awaitState waits up to two poll intervals for the device to report a track. A device with nothing loaded
// never does, which is fine for play.
func (r *Runner) awaitState(ctx context.Context, player *playback.Coordinator, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	if player.State().Observed.CurrentTrackURI != "" {
		return
	}

	timer := time.NewTimer(2 * interval)
	defer timer.Stop()

	for {
		select {
		case n, ok := <-player.Notifications():
			if !ok || n.State.CurrentTrackURI != "" {
				return
			}
		case <-timer.C:
			r.logger.Debug("no playback state reported yet")
			return
		case <-ctx.Done():
			return
		}
	}
}

// withPlayer runs fn against a connected coordinator and prints the resulting state.
func (r *Runner) withPlayer(ctx context.Context, cmd *cli.Command, fn func(context.Context, *playback.Coordinator) error) error {
	player, err := r.connectPlayer(ctx, cmd)
	if err != nil {
		return err
	}
	defer player.Close()

	if err := fn(ctx, player); err != nil {
		return err
	}

	state := player.State().Observed
	if state.CurrentTrackURI == "" {
		return r.writePlain("✓ Done\n")
	}

	icon := "⏸"
	if state.IsPlaying {
		icon = "▶"
	}
	return r.writePlain("✓ %s %s - %s\n", icon, state.Track.Artist, state.Track.Name)
}

// PlayerDevices lists the Connect devices visible to the account.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	if err := r.signedIn(); err != nil {
		return err
	}

	devices, err := r.spotify.Devices(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}
	if len(devices) == 0 {
		return r.writePlain("No devices found. Open Spotify on a device or run 'spotui serve'.\n")
	}

	for _, d := range devices {
		marker := " "
		if d.Active {
			marker = "*"
		}
		r.writePlain("%s %-24s %-12s volume %3d%%  %s\n", marker, d.Name, d.Type, d.VolumePercent, d.ID)
	}
	return nil
}

// PlayerStatus prints the account's current playback.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.signedIn(); err != nil {
		return err
	}

	pb, err := r.spotify.CurrentPlayback(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(pb, true)
	}
	if pb == nil || pb.Track == nil {
		return r.writePlain("Nothing playing\n")
	}

	icon := "⏸"
	if pb.IsPlaying {
		icon = "▶"
	}
	r.writePlain("%s %s - %s\n", icon, pb.Track.Artist, pb.Track.Name)
	if pb.Track.Album != "" {
		r.writePlain("  %s\n", pb.Track.Album)
	}
	r.writePlain("  %s / %s\n", formatter.Duration(pb.ProgressMs), formatter.Duration(pb.Track.DurationMs))
	r.writePlain("  on %s (volume %d%%)\n", pb.Device.Name, pb.Device.VolumePercent)
	return nil
}

// PlayerPlay plays the uri argument on the device.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	uri := strings.TrimSpace(cmd.StringArg("uri"))
	if uri == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(uri, "spotify:track:") {
		return fmt.Errorf("%w: %q is not a spotify:track: uri", shared.ErrInvalidArgument, uri)
	}

	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.PlayTrack(ctx, uri)
	})
}

// PlayerToggle pauses or resumes.
func (r *Runner) PlayerToggle(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.Toggle(ctx)
	})
}

// PlayerSeek moves the playhead to the position argument.
func (r *Runner) PlayerSeek(ctx context.Context, cmd *cli.Command) error {
	ms, err := parsePosition(cmd.StringArg("position"))
	if err != nil {
		return err
	}

	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.Seek(ctx, ms)
	})
}

// PlayerVolume sets the volume from a 0-100 percentage.
func (r *Runner) PlayerVolume(ctx context.Context, cmd *cli.Command) error {
	percent, err := parsePercent(cmd.StringArg("percent"))
	if err != nil {
		return err
	}

	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.SetVolume(ctx, float64(percent)/100)
	})
}

// PlayerNext skips forward.
func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.Next(ctx)
	})
}

// PlayerPrevious skips back.
func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.withPlayer(ctx, cmd, func(ctx context.Context, p *playback.Coordinator) error {
		return p.Previous(ctx)
	})
}

// parsePosition accepts milliseconds ("90000") or a clock position ("1:30", "1:02:03").
func parsePosition(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: position", shared.ErrMissingArgument)
	}

	if !strings.Contains(s, ":") {
		ms, err := strconv.Atoi(s)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
		}
		return ms, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
	}

	seconds := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
		}
		seconds = seconds*60 + n
	}
	return seconds * 1000, nil
}

func parsePercent(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, fmt.Errorf("%w: volume", shared.ErrMissingArgument)
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("%w: volume must be 0-100, got %q", shared.ErrInvalidArgument, s)
	}
	return n, nil
}
