package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/desertthunder/spotui/internal/device"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/server"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/desertthunder/spotui/internal/web"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the HTTP server with the browser player as its playback device until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.session(); err != nil {
		return err
	}

	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}
	r.checkRedirect(cfg)

	player := r.config.Player
	bridge := device.NewBridge(r.tokens, device.BridgeOptions{
		Name:    player.Name,
		Volume:  player.Volume,
		Timeout: player.CommandWindow,
		Logger:  r.logger,
	})

	page, err := web.Handler(web.Page{Name: player.Name, SocketPath: web.DefaultSocketPath})
	if err != nil {
		return err
	}

	opts := playback.OptionsFrom(player)
	opts.Logger = r.logger
	coordinator := playback.New(bridge, r.spotify, opts)

	srv := server.New(server.Deps{
		Auth:    r.tokens,
		Library: r.spotify,
		Player:  coordinator,
		Device:  bridge,
		Page:    page,
		Config:  cfg,
		Logger:  r.logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	g.Go(func() error {
		if err := coordinator.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return coordinator.Close()
	})

	g.Go(func() error {
		r.watch(coordinator.Notifications())
		return nil
	})

	pageURL := "http://" + cfg.Addr() + "/"
	r.writePlain("Player page: %s\n", pageURL)
	if !r.tokens.IsAuthenticated() {
		r.writePlain("Sign in at http://%s/login\n", cfg.Addr())
	}

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(ctx, pageURL); err != nil {
			r.logger.Warn("could not open a browser", "error", err)
		}
	}

	return g.Wait()
}

// watch logs coordinator notifications worth surfacing until the channel closes.
func (r *Runner) watch(notifications <-chan playback.Notification) {
	logger := shared.WithLogger(r.logger, "component", "serve")
	for n := range notifications {
		switch n.Kind {
		case playback.TrackChanged:
			if n.State.Track.Name == "" {
				logger.Info("now playing", "uri", n.URI)
				continue
			}
			logger.Info("now playing", "artist", n.State.Track.Artist, "track", n.State.Track.Name, "uri", n.URI)
		case playback.ErrorReported:
			logger.Error("playback error", "error", n.Err)
		case playback.Connected:
			logger.Info("player attached", "device_id", n.State.DeviceID)
		}
	}
}

// checkRedirect warns when the configured redirect URI will not reach this server's callback route.
func (r *Runner) checkRedirect(cfg shared.ServerConfig) {
	redirect := r.config.Credentials.Spotify.RedirectURI
	u, err := url.Parse(redirect)
	if err != nil {
		r.logger.Warn("redirect_uri is not a URL", "redirect_uri", redirect)
		return
	}

	if u.Port() != strconv.Itoa(cfg.Port) || u.Path != "/callback" {
		want := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/callback"
		r.logger.Warn(fmt.Sprintf("redirect_uri does not point at this server, web login will fail (expected %s)", want),
			"redirect_uri", redirect)
	}
}
