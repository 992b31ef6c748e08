package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/services"
	"github.com/desertthunder/spotui/internal/shared"
)

// Source is the library surface exports read from.
type Source interface {
	UserPlaylists(ctx context.Context) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, id string) ([]models.Track, error)
}

var _ Source = (*services.SpotifyService)(nil)

// Exporter writes library playlists to disk.
type Exporter struct {
	source Source
	logger *log.Logger
}

// NewExporter creates an Exporter reading from source.
func NewExporter(source Source, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{source: source, logger: shared.WithLogger(logger, "component", "export")}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
