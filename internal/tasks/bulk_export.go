package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spotui/internal/formatter"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 5
	maxWorkers       = 10
	defaultRateLimit = 5.0
	manifestName     = "export_manifest.json"
)

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format    formatter.Format // defaults to JSON
	OutputDir string           // defaults to spotify_export_{epoch}
	Workers   int              // concurrent workers (default 5, at most 10)
	RateLimit float64          // track fetches per second (default 5)
	Match     string           // only playlists whose name contains Match, case-insensitively
}

// PlaylistResult is the outcome for one playlist.
type PlaylistResult struct {
	PlaylistID string `json:"playlist_id"`
	Name       string `json:"name"`
	Tracks     int    `json:"tracks"`
	File       string `json:"file,omitempty"`
	Error      string `json:"error,omitempty"`

	err error
}

// Err returns the failure, nil on success.
func (r PlaylistResult) Err() error { return r.err }

// ExportResult summarizes a bulk export.
type ExportResult struct {
	Format     formatter.Format `json:"format"`
	OutputDir  string           `json:"output_dir"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Manifest   string           `json:"-"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []PlaylistResult `json:"results"`
}

// Export writes each library playlist to its own file in opts.OutputDir, then writes a manifest.
//
// Individual playlist failures are recorded in the result. Cancelling ctx stops queueing and returns the partial
// result with ctx's error.
func (e *Exporter) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.JSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	playlists, err := e.source.UserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	playlists = filterPlaylists(playlists, opts.Match)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		Total:     len(playlists),
		Results:   make([]PlaylistResult, 0, len(playlists)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.Playlist)
	results := make(chan PlaylistResult, len(playlists))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, limiter, jobs, results, opts)
	}

	e.sendProgress(progress, queuedUpdate(len(playlists)))
	go func() {
		defer close(jobs)
		for _, p := range playlists {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		result.Results = append(result.Results, res)
		step := len(result.Results)
		if res.err != nil {
			result.Failed++
			e.logger.Warn("playlist export failed", "playlist", res.Name, "error", res.err)
			e.sendProgress(progress, failedUpdate(step, len(playlists), res))
			continue
		}
		result.Succeeded++
		e.sendProgress(progress, exportedUpdate(step, len(playlists), res))
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Name < result.Results[j].Name
	})
	result.FinishedAt = time.Now().UTC()

	manifest := filepath.Join(opts.OutputDir, manifestName)
	if err := writeManifest(result, manifest); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.Manifest = manifest
	e.sendProgress(progress, manifestUpdate(manifest))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// worker exports playlists from jobs until it is closed or ctx ends.
func (e *Exporter) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan models.Playlist,
	results chan<- PlaylistResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for p := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- failed(p, err)
			continue
		}
		results <- e.exportOne(ctx, p, opts)
	}
}

func (e *Exporter) exportOne(ctx context.Context, p models.Playlist, opts ExportOpts) PlaylistResult {
	tracks, err := e.source.PlaylistTracks(ctx, p.ID)
	if err != nil {
		return failed(p, fmt.Errorf("failed to fetch tracks: %w", err))
	}

	list := &models.TrackList{Title: p.Name, Description: p.Description, Tracks: tracks}
	name := formatter.Slug(p.Name) + "-" + p.ID + opts.Format.Extension()

	path, err := formatter.WriteFile(list, opts.Format, filepath.Join(opts.OutputDir, name))
	if err != nil {
		return failed(p, err)
	}

	e.logger.Debug("playlist exported", "playlist", p.Name, "tracks", len(tracks), "file", path)
	return PlaylistResult{PlaylistID: p.ID, Name: p.Name, Tracks: len(tracks), File: path}
}

func failed(p models.Playlist, err error) PlaylistResult {
	return PlaylistResult{PlaylistID: p.ID, Name: p.Name, Error: err.Error(), err: err}
}

func filterPlaylists(playlists []models.Playlist, match string) []models.Playlist {
	match = strings.ToLower(strings.TrimSpace(match))
	if match == "" {
		return playlists
	}

	out := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		if strings.Contains(strings.ToLower(p.Name), match) {
			out = append(out, p)
		}
	}
	return out
}

func writeManifest(result *ExportResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
