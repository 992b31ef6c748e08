package services

import (
	"context"

	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/models"
)

// Requester sends an authorized Web API request. [auth.TokenManager] implements it.
type Requester interface {
	AuthorizedRequest(ctx context.Context, endpoint string, opts auth.RequestOptions) (*auth.Response, error)
}

// Library is the read-only catalogue surface used by search and browsing front ends.
type Library interface {
	CurrentUser(ctx context.Context) (*models.Profile, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
	ArtistTracks(ctx context.Context, artist string) ([]models.Track, error)
	UserPlaylists(ctx context.Context) ([]models.Playlist, error)
	TopTracks(ctx context.Context, timeRange string) ([]models.Track, error)
}

// Player is the /me/player surface.
type Player interface {
	TransferPlayback(ctx context.Context, deviceID string) error
	PlayTrack(ctx context.Context, deviceID, uri string) error
	CurrentPlayback(ctx context.Context) (*models.Playback, error)
	Devices(ctx context.Context) ([]models.Device, error)
	Pause(ctx context.Context, deviceID string) error
	Resume(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMs int) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
}

var (
	_ Library = (*SpotifyService)(nil)
	_ Player  = (*SpotifyService)(nil)
)
