// Spotify Web API implementation of [Library] and [Player]
//
// Wire types come from github.com/zmb3/spotify/v2, see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/zmb3/spotify/v2"
)

const (
	defaultSearchLimit = 20
	maxLimit           = 50
	playlistPageLimit  = 100
	// maxPages bounds pagination so a misbehaving next link cannot loop forever.
	maxPages = 20
)

// TimeRanges accepted by [SpotifyService.TopTracks].
var TimeRanges = []string{"short_term", "medium_term", "long_term"}

// SpotifyService is the typed Web API client.
type SpotifyService struct {
	client Requester
	logger *log.Logger
}

// NewSpotifyService creates a client that sends every request through client.
func NewSpotifyService(client Requester, logger *log.Logger) *SpotifyService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyService{client: client, logger: shared.WithLogger(logger, "component", "spotify")}
}

// get performs an authorized GET and decodes the body into result.
//
// A 204 or empty body is reported as [shared.ErrNoContent].
func (s *SpotifyService) get(ctx context.Context, endpoint string, query url.Values, result any) error {
	resp, err := s.client.AuthorizedRequest(ctx, endpoint, auth.RequestOptions{Query: query})
	if err != nil {
		return err
	}
	return resp.Decode(result)
}

// CurrentUser retrieves the signed-in user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.Profile, error) {
	var user spotify.PrivateUser
	if err := s.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}

	return &models.Profile{
		ID:          string(user.ID),
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
	}, nil
}

// SearchTracks searches the catalogue for tracks.
//
// A blank query returns an empty result without a request. limit is clamped to [1, 50]; zero selects 20.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Track{}, nil
	}

	switch {
	case limit == 0:
		limit = defaultSearchLimit
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}

	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}

	var result spotify.SearchResult
	if err := s.get(ctx, "/search", params, &result); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if result.Tracks == nil {
		return []models.Track{}, nil
	}
	return convertTracks(result.Tracks.Tracks), nil
}

// ArtistTracks returns up to 50 catalogue tracks credited to artist.
func (s *SpotifyService) ArtistTracks(ctx context.Context, artist string) ([]models.Track, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}
	return s.SearchTracks(ctx, fmt.Sprintf("artist:%q", artist), maxLimit)
}

// UserPlaylists retrieves every playlist in the user's library, following next links.
func (s *SpotifyService) UserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist

	endpoint := "/me/playlists"
	params := url.Values{"limit": {strconv.Itoa(maxLimit)}}

	for page := 0; page < maxPages && endpoint != ""; page++ {
		var response spotify.SimplePlaylistPage
		if err := s.get(ctx, endpoint, params, &response); err != nil {
			return nil, err
		}

		for _, sp := range response.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:          string(sp.ID),
				Name:        sp.Name,
				Description: sp.Description,
				Owner:       sp.Owner.DisplayName,
				TrackCount:  int(sp.Tracks.Total),
				Public:      sp.IsPublic,
				URI:         string(sp.URI),
			})
		}

		// next is absolute and already carries limit and offset
		endpoint, params = response.Next, nil
	}

	s.logger.Debug("fetched playlists", "count", len(playlists))
	return playlists, nil
}

// PlaylistTracks retrieves every track in playlist id, following next links. Local files and podcast episodes are
// skipped since they cannot be played by URI.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	tracks := []models.Track{}
	endpoint := "/playlists/" + url.PathEscape(id) + "/tracks"
	params := url.Values{"limit": {strconv.Itoa(playlistPageLimit)}}

	for page := 0; page < maxPages && endpoint != ""; page++ {
		var response spotify.PlaylistTrackPage
		if err := s.get(ctx, endpoint, params, &response); err != nil {
			return nil, err
		}

		for i := range response.Tracks {
			item := &response.Tracks[i]
			if item.IsLocal || !strings.HasPrefix(string(item.Track.URI), "spotify:track:") {
				continue
			}
			tracks = append(tracks, convertTrack(&item.Track))
		}

		endpoint, params = response.Next, nil
	}

	s.logger.Debug("fetched playlist tracks", "playlist", id, "count", len(tracks))
	return tracks, nil
}

// TopTracks returns the user's 50 most played tracks over timeRange (short_term, medium_term or long_term).
// An empty range selects medium_term.
func (s *SpotifyService) TopTracks(ctx context.Context, timeRange string) ([]models.Track, error) {
	if timeRange == "" {
		timeRange = "medium_term"
	}

	valid := false
	for _, r := range TimeRanges {
		valid = valid || r == timeRange
	}
	if !valid {
		return nil, fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, timeRange)
	}

	params := url.Values{
		"time_range": {timeRange},
		"limit":      {strconv.Itoa(maxLimit)},
	}

	var page spotify.FullTrackPage
	if err := s.get(ctx, "/me/top/tracks", params, &page); err != nil {
		return nil, err
	}
	return convertTracks(page.Tracks), nil
}

func convertTracks(tracks []spotify.FullTrack) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for i := range tracks {
		out = append(out, convertTrack(&tracks[i]))
	}
	return out
}

func convertTrack(t *spotify.FullTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	return models.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		Artist:     strings.Join(artists, ", "),
		Album:      t.Album.Name,
		DurationMs: int(t.Duration),
		URI:        string(t.URI),
		Explicit:   t.Explicit,
	}
}
