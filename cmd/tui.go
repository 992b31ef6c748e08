package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/spotui/internal/device"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/desertthunder/spotui/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the terminal player over a Spotify Connect device.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Log.File
	if path == "" {
		path = filepath.Join(os.TempDir(), "spotui-tui.log")
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if err := shared.SetLogLevel(fileLogger, r.config.Log.Level); err != nil {
		return err
	}
	r.SetLogger(fileLogger)

	if err := r.signedIn(); err != nil {
		return err
	}

	cfg := r.config.Player
	name := cmd.String("device")
	if name == "" {
		name = cfg.DeviceName
	}

	dev := device.NewConnect(r.spotify, device.ConnectOptions{
		Name:     name,
		Interval: cfg.PollInterval,
		Logger:   fileLogger,
	})

	opts := playback.OptionsFrom(cfg)
	opts.Logger = fileLogger
	player := playback.New(dev, r.spotify, opts)
	defer player.Close()

	if err := player.Start(ctx); err != nil {
		return err
	}

	return ui.Run(ctx, player, r.spotify)
}
