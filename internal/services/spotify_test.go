package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/spotui/internal/shared"
	tu "github.com/desertthunder/spotui/internal/testing"
)

const trackPage = `{
	"href": "https://api.spotify.com/v1/search",
	"items": [
		{
			"id": "t1",
			"name": "Song One",
			"uri": "spotify:track:t1",
			"duration_ms": 180000,
			"explicit": true,
			"artists": [{"id": "a1", "name": "Artist One"}, {"id": "a2", "name": "Artist Two"}],
			"album": {"id": "al1", "name": "Album One"}
		},
		{
			"id": "t2",
			"name": "Song Two",
			"uri": "spotify:track:t2",
			"duration_ms": 240000,
			"artists": [{"id": "a3", "name": "Artist Three"}],
			"album": {"id": "al2", "name": "Album Two"}
		}
	],
	"limit": 20,
	"offset": 0,
	"total": 2,
	"next": null,
	"previous": null
}`

func newService(requester *tu.FakeRequester) *SpotifyService {
	return NewSpotifyService(requester, shared.NewLogger(nil))
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("CurrentUser", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodGet, "/me", http.StatusOK,
			`{"id":"user-1","display_name":"Test User","email":"test@example.com","country":"US","product":"premium"}`)

		profile, err := newService(requester).CurrentUser(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if profile.ID != "user-1" || profile.DisplayName != "Test User" {
			t.Errorf("unexpected profile: %+v", profile)
		}
		if !profile.Premium() {
			t.Error("expected premium account")
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		t.Run("empty query makes no request", func(t *testing.T) {
			requester := tu.NewFakeRequester()
			srv := newService(requester)

			for _, q := range []string{"", "   ", "\t\n"} {
				tracks, err := srv.SearchTracks(ctx, q, 10)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tracks == nil || len(tracks) != 0 {
					t.Errorf("expected empty non-nil slice, got %v", tracks)
				}
			}

			if calls := requester.Calls(); len(calls) != 0 {
				t.Errorf("expected zero requests, got %d", len(calls))
			}
		})

		t.Run("sends query and converts tracks", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/search", http.StatusOK, `{"tracks":`+trackPage+`}`)

			tracks, err := newService(requester).SearchTracks(ctx, "  daft punk ", 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			calls := requester.Calls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 request, got %d", len(calls))
			}
			q := calls[0].Query
			if q.Get("q") != "daft punk" || q.Get("type") != "track" || q.Get("limit") != "20" {
				t.Errorf("unexpected query: %v", q)
			}

			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(tracks))
			}
			first := tracks[0]
			if first.URI != "spotify:track:t1" {
				t.Errorf("expected uri spotify:track:t1, got %s", first.URI)
			}
			if first.Artist != "Artist One, Artist Two" {
				t.Errorf("expected joined artists, got %q", first.Artist)
			}
			if first.Album != "Album One" || first.DurationMs != 180000 || !first.Explicit {
				t.Errorf("unexpected track: %+v", first)
			}
		})

		t.Run("clamps limit", func(t *testing.T) {
			tests := []struct {
				in   int
				want string
			}{
				{in: -5, want: "1"},
				{in: 1, want: "1"},
				{in: 50, want: "50"},
				{in: 500, want: "50"},
			}

			for _, tt := range tests {
				requester := tu.NewFakeRequester().On(http.MethodGet, "/search", http.StatusOK, `{"tracks":`+trackPage+`}`)
				if _, err := newService(requester).SearchTracks(ctx, "q", tt.in); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got := requester.Calls()[0].Query.Get("limit"); got != tt.want {
					t.Errorf("limit %d: expected %s, got %s", tt.in, tt.want, got)
				}
			}
		})

		t.Run("missing tracks object", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/search", http.StatusOK, `{}`)
			tracks, err := newService(requester).SearchTracks(ctx, "q", 5)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
		})

		t.Run("propagates api errors", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/search", http.StatusTooManyRequests, `{"error":{"status":429,"message":"API rate limit exceeded"}}`)
			_, err := newService(requester).SearchTracks(ctx, "q", 5)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("ArtistTracks", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodGet, "/search", http.StatusOK, `{"tracks":`+trackPage+`}`)
		if _, err := newService(requester).ArtistTracks(ctx, "Daft Punk"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		q := requester.Calls()[0].Query
		if q.Get("q") != `artist:"Daft Punk"` {
			t.Errorf("unexpected q: %s", q.Get("q"))
		}
		if q.Get("limit") != "50" {
			t.Errorf("expected limit 50, got %s", q.Get("limit"))
		}

		if _, err := newService(tu.NewFakeRequester()).ArtistTracks(ctx, " "); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("UserPlaylists follows next links", func(t *testing.T) {
		next := "https://api.spotify.com/v1/me/playlists?offset=50&limit=50"
		requester := tu.NewFakeRequester().
			On(http.MethodGet, "/me/playlists", http.StatusOK, `{
				"items": [{"id":"p1","name":"Road Trip","description":"long drives","public":true,
					"owner":{"id":"u1","display_name":"Test User"},"tracks":{"total":12},"uri":"spotify:playlist:p1"}],
				"next": "`+next+`"
			}`).
			On(http.MethodGet, "https://api.spotify.com/v1/me/playlists", http.StatusOK, `{
				"items": [{"id":"p2","name":"Focus","public":false,
					"owner":{"id":"u1","display_name":"Test User"},"tracks":{"total":3},"uri":"spotify:playlist:p2"}],
				"next": null
			}`)

		playlists, err := newService(requester).UserPlaylists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].TrackCount != 12 || !playlists[0].Public || playlists[0].Owner != "Test User" {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if playlists[1].ID != "p2" || playlists[1].Public {
			t.Errorf("unexpected second playlist: %+v", playlists[1])
		}

		calls := requester.Calls()
		if calls[0].Query.Get("limit") != "50" {
			t.Errorf("expected limit=50 on first page, got %v", calls[0].Query)
		}
		if calls[1].Query.Get("offset") != "50" {
			t.Errorf("expected next link query to be kept, got %v", calls[1].Query)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		t.Run("skips local files and episodes", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/playlists/p1/tracks", http.StatusOK, `{"items":[
				{"is_local":false,"track":{"id":"t1","name":"Song One","uri":"spotify:track:t1","duration_ms":1000,"artists":[{"name":"A"}],"album":{"name":"B"}}},
				{"is_local":true,"track":{"name":"Demo","uri":"spotify:local:x:y:demo:1"}},
				{"is_local":false,"track":{"id":"e1","name":"Episode","uri":"spotify:episode:e1"}}
			],"next":null}`)

			tracks, err := newService(requester).PlaylistTracks(ctx, "p1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 || tracks[0].URI != "spotify:track:t1" {
				t.Errorf("unexpected tracks: %+v", tracks)
			}
			if got := requester.Calls()[0].Query.Get("limit"); got != "100" {
				t.Errorf("expected limit=100, got %s", got)
			}
		})

		t.Run("requires an id", func(t *testing.T) {
			requester := tu.NewFakeRequester()
			_, err := newService(requester).PlaylistTracks(ctx, " ")
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
			if len(requester.Calls()) != 0 {
				t.Error("expected no request")
			}
		})
	})

	t.Run("TopTracks", func(t *testing.T) {
		t.Run("defaults to medium_term", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/me/top/tracks", http.StatusOK, trackPage)
			tracks, err := newService(requester).TopTracks(ctx, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 {
				t.Errorf("expected 2 tracks, got %d", len(tracks))
			}
			q := requester.Calls()[0].Query
			if q.Get("time_range") != "medium_term" || q.Get("limit") != "50" {
				t.Errorf("unexpected query: %v", q)
			}
		})

		t.Run("rejects unknown ranges", func(t *testing.T) {
			requester := tu.NewFakeRequester()
			_, err := newService(requester).TopTracks(ctx, "forever")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if len(requester.Calls()) != 0 {
				t.Error("expected no request")
			}
		})
	})
}

func TestPlayer(t *testing.T) {
	ctx := context.Background()

	t.Run("TransferPlayback", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodPut, "/me/player", http.StatusNoContent, "")
		if err := newService(requester).TransferPlayback(ctx, "dev-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var body map[string]any
		if err := json.Unmarshal(requester.Calls()[0].Body, &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		ids, _ := body["device_ids"].([]any)
		if len(ids) != 1 || ids[0] != "dev-1" {
			t.Errorf("unexpected device_ids: %v", body["device_ids"])
		}
		if body["play"] != false {
			t.Errorf("expected play=false, got %v", body["play"])
		}
	})

	t.Run("TransferPlayback failure", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodPut, "/me/player", http.StatusInternalServerError, "")
		err := newService(requester).TransferPlayback(ctx, "dev-1")
		if !errors.Is(err, shared.ErrTransferFailed) {
			t.Errorf("expected ErrTransferFailed, got %v", err)
		}
	})

	t.Run("PlayTrack", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodPut, "/me/player/play", http.StatusNoContent, "")
		if err := newService(requester).PlayTrack(ctx, "dev-1", "spotify:track:t1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		call := requester.Calls()[0]
		if call.Query.Get("device_id") != "dev-1" {
			t.Errorf("expected device_id=dev-1, got %v", call.Query)
		}
		if string(call.Body) != `{"uris":["spotify:track:t1"]}` {
			t.Errorf("unexpected body: %s", call.Body)
		}
	})

	t.Run("CurrentPlayback", func(t *testing.T) {
		t.Run("no active device", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/me/player", http.StatusNoContent, "")
			playback, err := newService(requester).CurrentPlayback(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if playback != nil {
				t.Errorf("expected nil playback, got %+v", playback)
			}
		})

		t.Run("active device", func(t *testing.T) {
			requester := tu.NewFakeRequester().On(http.MethodGet, "/me/player", http.StatusOK, `{
				"device": {"id":"dev-1","is_active":true,"is_restricted":false,"name":"Desk","type":"Computer","volume_percent":55},
				"shuffle_state": true,
				"repeat_state": "context",
				"timestamp": 1700000000000,
				"progress_ms": 42000,
				"is_playing": true,
				"item": {"id":"t1","name":"Song One","uri":"spotify:track:t1","duration_ms":180000,
					"artists":[{"id":"a1","name":"Artist One"}],"album":{"id":"al1","name":"Album One"}}
			}`)

			playback, err := newService(requester).CurrentPlayback(ctx)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if playback.Device.ID != "dev-1" || playback.Device.VolumePercent != 55 || !playback.Device.Active {
				t.Errorf("unexpected device: %+v", playback.Device)
			}
			if !playback.IsPlaying || playback.ProgressMs != 42000 || !playback.Shuffle || playback.Repeat != "context" {
				t.Errorf("unexpected playback: %+v", playback)
			}
			if playback.Track == nil || playback.Track.URI != "spotify:track:t1" {
				t.Errorf("unexpected track: %+v", playback.Track)
			}
		})
	})

	t.Run("Devices", func(t *testing.T) {
		requester := tu.NewFakeRequester().On(http.MethodGet, "/me/player/devices", http.StatusOK, `{"devices":[
			{"id":"dev-1","is_active":false,"name":"Desk","type":"Computer","volume_percent":40},
			{"id":"dev-2","is_active":true,"name":"Kitchen","type":"Speaker","volume_percent":80}
		]}`)

		devices, err := newService(requester).Devices(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(devices) != 2 || devices[1].Name != "Kitchen" || !devices[1].Active {
			t.Errorf("unexpected devices: %+v", devices)
		}
	})

	t.Run("commands", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			call   func(*SpotifyService) error
			query  map[string]string
		}{
			{
				name: "Pause", method: http.MethodPut, path: "/me/player/pause",
				call:  func(s *SpotifyService) error { return s.Pause(ctx, "dev-1") },
				query: map[string]string{"device_id": "dev-1"},
			},
			{
				name: "Resume", method: http.MethodPut, path: "/me/player/play",
				call:  func(s *SpotifyService) error { return s.Resume(ctx, "") },
				query: map[string]string{"device_id": ""},
			},
			{
				name: "Seek", method: http.MethodPut, path: "/me/player/seek",
				call:  func(s *SpotifyService) error { return s.Seek(ctx, "dev-1", 61000) },
				query: map[string]string{"position_ms": "61000", "device_id": "dev-1"},
			},
			{
				name: "SetVolume clamps", method: http.MethodPut, path: "/me/player/volume",
				call:  func(s *SpotifyService) error { return s.SetVolume(ctx, "dev-1", 140) },
				query: map[string]string{"volume_percent": "100"},
			},
			{
				name: "Next", method: http.MethodPost, path: "/me/player/next",
				call: func(s *SpotifyService) error { return s.Next(ctx, "dev-1") },
			},
			{
				name: "Previous", method: http.MethodPost, path: "/me/player/previous",
				call: func(s *SpotifyService) error { return s.Previous(ctx, "dev-1") },
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				requester := tu.NewFakeRequester().On(tt.method, tt.path, http.StatusNoContent, "")
				if err := tt.call(newService(requester)); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				calls := requester.Calls()
				if len(calls) != 1 {
					t.Fatalf("expected 1 request, got %d", len(calls))
				}
				for k, v := range tt.query {
					if got := calls[0].Query.Get(k); got != v {
						t.Errorf("expected %s=%q, got %q", k, v, got)
					}
				}
			})
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			body   string
			want   error
		}{
			{name: "premium required", status: http.StatusForbidden, body: `{"error":{"status":403,"message":"Premium required","reason":"PREMIUM_REQUIRED"}}`, want: shared.ErrPremiumRequired},
			{name: "bare forbidden", status: http.StatusForbidden, body: ``, want: shared.ErrPremiumRequired},
			{name: "restriction", status: http.StatusForbidden, body: `{"error":{"status":403,"message":"Restriction violated","reason":"UNKNOWN"}}`, want: shared.ErrCommandFailed},
			{name: "no device", status: http.StatusNotFound, body: `{"error":{"status":404,"message":"Player command failed: No active device found","reason":"NO_ACTIVE_DEVICE"}}`, want: shared.ErrDeviceNotFound},
			{name: "server error", status: http.StatusBadGateway, body: ``, want: shared.ErrCommandFailed},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				requester := tu.NewFakeRequester().On(http.MethodPost, "/me/player/next", tt.status, tt.body)
				err := newService(requester).Next(ctx, "dev-1")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
