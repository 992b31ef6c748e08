package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotui/internal/formatter"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/desertthunder/spotui/internal/tasks"
	"github.com/urfave/cli/v3"
)

// writeTracks prints list in the --format (or --json) requested, or saves it under --output.
func (r *Runner) writeTracks(cmd *cli.Command, list *models.TrackList) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		format = formatter.JSON
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteFile(list, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("export written", "path", path, "format", format, "tracks", len(list.Tracks))
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(list.Tracks), path)
	}

	return formatter.Write(r.output, list, format)
}

// Search finds tracks matching the query argument.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	limit := cmd.Int("limit")
	if limit < 1 || limit > 50 {
		return fmt.Errorf("%w: limit must be between 1 and 50, got %d", shared.ErrInvalidArgument, limit)
	}

	if err := r.signedIn(); err != nil {
		return err
	}

	tracks, err := r.spotify.SearchTracks(ctx, query, int(limit))
	if err != nil {
		return err
	}
	if len(tracks) == 0 && !cmd.Bool("json") {
		return r.writePlain("No tracks found for %q\n", query)
	}

	return r.writeTracks(cmd, &models.TrackList{
		Title:       "Search: " + query,
		Description: fmt.Sprintf("Top %d Spotify results", limit),
		Tracks:      tracks,
	})
}

// LibraryPlaylists lists the user's playlists.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	if err := r.signedIn(); err != nil {
		return err
	}

	playlists, err := r.spotify.UserPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for i, p := range playlists {
		visibility := "private"
		if p.Public {
			visibility = "public"
		}
		r.writePlain("%3d. %s (%d tracks, %s, by %s)\n", i+1, p.Name, p.TrackCount, visibility, p.Owner)
	}
	return nil
}

// LibraryTop lists the user's top tracks for --range.
func (r *Runner) LibraryTop(ctx context.Context, cmd *cli.Command) error {
	if err := r.signedIn(); err != nil {
		return err
	}

	timeRange := cmd.String("range")
	tracks, err := r.spotify.TopTracks(ctx, timeRange)
	if err != nil {
		return err
	}

	return r.writeTracks(cmd, &models.TrackList{
		Title:       "Top tracks",
		Description: strings.ReplaceAll(timeRange, "_", " "),
		Tracks:      tracks,
	})
}

// LibraryArtist lists catalogue tracks by the artist argument.
func (r *Runner) LibraryArtist(ctx context.Context, cmd *cli.Command) error {
	artist := strings.TrimSpace(cmd.StringArg("name"))
	if artist == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	if err := r.signedIn(); err != nil {
		return err
	}

	tracks, err := r.spotify.ArtistTracks(ctx, artist)
	if err != nil {
		return err
	}

	return r.writeTracks(cmd, &models.TrackList{Title: artist, Tracks: tracks})
}

// LibraryExport writes every playlist to --dir, printing progress as playlists finish.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.signedIn(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			if u.Phase == tasks.ExportPlaylist {
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			} else {
				r.writePlain("%s\n", u.Message)
			}
		}
	}()

	exporter := tasks.NewExporter(r.spotify, r.logger)
	result, err := exporter.Export(ctx, progress, tasks.ExportOpts{
		Format:    format,
		OutputDir: cmd.String("dir"),
		Workers:   int(cmd.Int("workers")),
		Match:     cmd.String("match"),
	})
	close(progress)
	<-done

	if result != nil {
		r.writePlainln("Exported %d of %d playlists to %s", result.Succeeded, result.Total, result.OutputDir)
		if result.Failed > 0 {
			r.writePlain("%d failed, see %s\n", result.Failed, result.Manifest)
		}
	}
	return err
}
