package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/spotui/internal/auth"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/zmb3/spotify/v2"
)

// TransferPlayback moves playback to deviceID without starting it.
func (s *SpotifyService) TransferPlayback(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id", shared.ErrMissingArgument)
	}

	body := struct {
		DeviceIDs []string `json:"device_ids"`
		Play      bool     `json:"play"`
	}{DeviceIDs: []string{deviceID}, Play: false}

	if err := s.command(ctx, http.MethodPut, "/me/player", nil, body); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTransferFailed, err)
	}
	return nil
}

// PlayTrack starts uri on deviceID.
func (s *SpotifyService) PlayTrack(ctx context.Context, deviceID, uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: []string{uri}}

	return s.command(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID, nil), body)
}

// CurrentPlayback returns the account's playback, or nil when no device is active.
func (s *SpotifyService) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	var state spotify.PlayerState
	err := s.get(ctx, "/me/player", nil, &state)
	if errors.Is(err, shared.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, playerError(err)
	}

	playback := &models.Playback{
		Device:     convertDevice(state.Device),
		ProgressMs: int(state.Progress),
		IsPlaying:  state.Playing,
		Shuffle:    state.ShuffleState,
		Repeat:     state.RepeatState,
	}
	if state.Item != nil {
		track := convertTrack(state.Item)
		playback.Track = &track
	}
	return playback, nil
}

// Devices lists the account's available Connect devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.Device, error) {
	var response struct {
		Devices []spotify.PlayerDevice `json:"devices"`
	}
	if err := s.get(ctx, "/me/player/devices", nil, &response); err != nil {
		return nil, playerError(err)
	}

	devices := make([]models.Device, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, convertDevice(d))
	}
	return devices, nil
}

// Pause pauses playback. An empty deviceID targets the active device.
func (s *SpotifyService) Pause(ctx context.Context, deviceID string) error {
	return s.command(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID, nil), nil)
}

// Resume resumes the current context without replacing it.
func (s *SpotifyService) Resume(ctx context.Context, deviceID string) error {
	return s.command(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID, nil), nil)
}

// Seek moves the playhead to positionMs.
func (s *SpotifyService) Seek(ctx context.Context, deviceID string, positionMs int) error {
	q := url.Values{"position_ms": {strconv.Itoa(max(positionMs, 0))}}
	return s.command(ctx, http.MethodPut, "/me/player/seek", deviceQuery(deviceID, q), nil)
}

// SetVolume sets the device volume, percent clamped to [0, 100].
func (s *SpotifyService) SetVolume(ctx context.Context, deviceID string, percent int) error {
	q := url.Values{"volume_percent": {strconv.Itoa(min(max(percent, 0), 100))}}
	return s.command(ctx, http.MethodPut, "/me/player/volume", deviceQuery(deviceID, q), nil)
}

// Next skips to the next track.
func (s *SpotifyService) Next(ctx context.Context, deviceID string) error {
	return s.command(ctx, http.MethodPost, "/me/player/next", deviceQuery(deviceID, nil), nil)
}

// Previous skips to the previous track.
func (s *SpotifyService) Previous(ctx context.Context, deviceID string) error {
	return s.command(ctx, http.MethodPost, "/me/player/previous", deviceQuery(deviceID, nil), nil)
}

func (s *SpotifyService) command(ctx context.Context, method, endpoint string, query url.Values, body any) error {
	_, err := s.client.AuthorizedRequest(ctx, endpoint, auth.RequestOptions{Method: method, Query: query, Body: body})
	if err != nil {
		s.logger.Debug("player command failed", "method", method, "endpoint", endpoint, "error", err)
		return playerError(err)
	}
	return nil
}

func deviceQuery(deviceID string, q url.Values) url.Values {
	if deviceID == "" {
		return q
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("device_id", deviceID)
	return q
}

// playerError maps player endpoint failures onto sentinels, keeping the original error in the chain.
func playerError(err error) error {
	var apiErr *auth.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.StatusCode == http.StatusForbidden && (apiErr.Reason() == "" || apiErr.Reason() == "PREMIUM_REQUIRED"):
		return fmt.Errorf("%w: %w", shared.ErrPremiumRequired, err)
	case apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", shared.ErrDeviceNotFound, err)
	case errors.Is(err, shared.ErrAuthenticationFailed):
		return err
	default:
		return fmt.Errorf("%w: %w", shared.ErrCommandFailed, err)
	}
}

func convertDevice(d spotify.PlayerDevice) models.Device {
	return models.Device{
		ID:            string(d.ID),
		Name:          d.Name,
		Type:          d.Type,
		Active:        d.Active,
		Restricted:    d.Restricted,
		VolumePercent: int(d.Volume),
	}
}
