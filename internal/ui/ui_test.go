package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu            sync.Mutex
	state         playback.State
	notifications chan playback.Notification
	calls         []string
	err           error
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		notifications: make(chan playback.Notification, 4),
		state: playback.State{
			Node: playback.Active,
			Observed: playback.PlayerState{
				IsReady:         true,
				IsActive:        true,
				IsPlaying:       true,
				CurrentTrackURI: "spotify:track:4cOdK2wGLETKBW3PvgPWqT",
				Track: models.Track{
					Name:   "Never Gonna Give You Up",
					Artist: "Rick Astley",
					Album:  "Whenever You Need Somebody",
					URI:    "spotify:track:4cOdK2wGLETKBW3PvgPWqT",
				},
				PositionMs: 62000,
				DurationMs: 213573,
				Volume:     0.5,
			},
		},
	}
}

func (f *fakePlayer) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlayer) State() playback.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePlayer) Notifications() <-chan playback.Notification { return f.notifications }
func (f *fakePlayer) Activate(context.Context) error               { return f.record("activate") }
func (f *fakePlayer) Toggle(context.Context) error                 { return f.record("toggle") }
func (f *fakePlayer) Next(context.Context) error                   { return f.record("next") }
func (f *fakePlayer) Previous(context.Context) error               { return f.record("previous") }
func (f *fakePlayer) SetCurrentTrack(uri string)                   { _ = f.record("current " + uri) }

func (f *fakePlayer) Seek(_ context.Context, ms int) error {
	return f.record(fmt.Sprintf("seek %d", ms))
}

func (f *fakePlayer) SetVolume(_ context.Context, v float64) error {
	return f.record(fmt.Sprintf("volume %.2f", v))
}

type fakeSearcher struct {
	queries []string
	tracks  []models.Track
	err     error
}

func (f *fakeSearcher) SearchTracks(_ context.Context, q string, limit int) ([]models.Track, error) {
	f.queries = append(f.queries, fmt.Sprintf("%s/%d", q, limit))
	return f.tracks, f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds msg to the model and runs the returned command, feeding its message back once.
func press(t *testing.T, m *Model, msg tea.Msg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(msg)
	if cmd == nil {
		return nil
	}
	out := cmd()
	if _, ok := out.(Msg); ok {
		m.Update(out)
	}
	return out
}

func TestNowPlayingKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"space toggles", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{"next", runes("n"), "next"},
		{"previous", runes("p"), "previous"},
		{"activate", runes("a"), "activate"},
		{"seek forward", tea.KeyMsg{Type: tea.KeyRight}, "seek 72000"},
		{"seek back", tea.KeyMsg{Type: tea.KeyLeft}, "seek 52000"},
		{"volume up", runes("+"), "volume 0.60"},
		{"volume down", runes("-"), "volume 0.40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := newFakePlayer()
			m := NewModel(context.Background(), player, nil)

			press(t, m, tt.key)
			assert.Equal(t, []string{tt.want}, player.Calls())
		})
	}

	t.Run("seek is bounded by the track", func(t *testing.T) {
		player := newFakePlayer()
		player.state.Observed.PositionMs = 209000
		m := NewModel(context.Background(), player, nil)

		press(t, m, tea.KeyMsg{Type: tea.KeyRight})
		player.state.Observed.PositionMs = 4000
		m.state = player.State()
		press(t, m, tea.KeyMsg{Type: tea.KeyLeft})

		assert.Equal(t, []string{"seek 213573", "seek 0"}, player.Calls())
	})

	t.Run("volume is bounded", func(t *testing.T) {
		player := newFakePlayer()
		player.state.Observed.Volume = 1
		m := NewModel(context.Background(), player, nil)

		press(t, m, runes("+"))
		assert.Equal(t, []string{"volume 1.00"}, player.Calls())
	})

	t.Run("quit", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(), nil)
		_, cmd := m.Update(runes("q"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("command errors are shown", func(t *testing.T) {
		player := newFakePlayer()
		player.err = shared.ErrBusy
		m := NewModel(context.Background(), player, nil)

		press(t, m, runes("n"))
		assert.True(t, m.failed)
		assert.Contains(t, m.status, "next: ")
		assert.Contains(t, m.View(), shared.ErrBusy.Error())

		player.err = nil
		press(t, m, runes("n"))
		assert.False(t, m.failed)
		assert.Empty(t, m.status)
	})

	t.Run("search needs a library", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(), nil)
		press(t, m, runes("/"))
		assert.Equal(t, NowPlayingView, m.view)
		assert.Equal(t, "search is unavailable", m.status)
	})
}

func TestNotifications(t *testing.T) {
	t.Run("state refresh", func(t *testing.T) {
		player := newFakePlayer()
		m := NewModel(context.Background(), player, nil)

		player.mu.Lock()
		player.state.Observed.PositionMs = 63000
		player.mu.Unlock()
		player.notifications <- playback.Notification{Kind: playback.PositionChanged}

		msg := m.Init()()
		_, cmd := m.Update(msg)

		assert.Equal(t, 63000, m.state.Observed.PositionMs)
		assert.NotNil(t, cmd, "the model keeps listening")
	})

	t.Run("errors", func(t *testing.T) {
		player := newFakePlayer()
		m := NewModel(context.Background(), player, nil)

		m.Update(notificationMsg(playback.Notification{
			Kind: playback.ErrorReported,
			Err:  playback.DeviceError{Kind: playback.AccountError, Message: "premium only"},
		}))

		assert.True(t, m.failed)
		assert.Equal(t, "account_error: premium only", m.status)
	})

	t.Run("closed", func(t *testing.T) {
		player := newFakePlayer()
		close(player.notifications)
		m := NewModel(context.Background(), player, nil)

		msg := m.Init()()
		_, cmd := m.Update(msg)

		assert.Nil(t, cmd)
		assert.Equal(t, "player closed", m.status)
	})
}

func TestSearch(t *testing.T) {
	tracks := []models.Track{
		{Name: "Never Gonna Give You Up", Artist: "Rick Astley", URI: "spotify:track:1", DurationMs: 213573},
		{Name: "Together Forever", Artist: "Rick Astley", URI: "spotify:track:2", DurationMs: 205000},
	}

	open := func(t *testing.T) (*Model, *fakePlayer, *fakeSearcher) {
		t.Helper()
		player := newFakePlayer()
		library := &fakeSearcher{tracks: tracks}
		m := NewModel(context.Background(), player, library)
		m.Update(runes("/"))
		require.Equal(t, SearchView, m.view)
		require.False(t, m.focused)
		return m, player, library
	}

	t.Run("typing goes to the input", func(t *testing.T) {
		m, player, _ := open(t)
		m.Update(runes("q"))
		m.Update(runes("n"))

		assert.Equal(t, "qn", m.input.Value())
		assert.Empty(t, player.Calls())
	})

	t.Run("query and pick", func(t *testing.T) {
		m, player, library := open(t)
		m.Update(runes("rick"))

		msg := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		require.IsType(t, Msg{}, msg)

		assert.Equal(t, []string{"rick/20"}, library.queries)
		assert.Len(t, m.results.Items(), 2)
		assert.True(t, m.focused)
		assert.Contains(t, m.View(), "Together Forever")

		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.Equal(t, []string{"current spotify:track:2"}, player.Calls())
		assert.Equal(t, "Up next: Rick Astley - Together Forever", m.status)
	})

	t.Run("blank query", func(t *testing.T) {
		m, _, library := open(t)
		m.Update(runes("   "))

		press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Empty(t, library.queries)
		assert.Empty(t, m.results.Items())
	})

	t.Run("stale results are dropped", func(t *testing.T) {
		m, _, _ := open(t)
		m.query = "astley"

		m.Update(searchResultsMsg("rick", tracks, nil))
		assert.Empty(t, m.results.Items())
	})

	t.Run("failure", func(t *testing.T) {
		m, _, library := open(t)
		library.err = errors.New("boom")
		m.Update(runes("rick"))

		press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, m.failed)
		assert.Equal(t, "search: boom", m.status)
		assert.False(t, m.focused)
	})

	t.Run("escape", func(t *testing.T) {
		m, _, _ := open(t)
		m.Update(runes("rick"))
		press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		require.True(t, m.focused)

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, m.focused)
		assert.Equal(t, SearchView, m.view)

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, NowPlayingView, m.view)
	})
}

func TestView(t *testing.T) {
	t.Run("now playing", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(), nil)
		view := m.View()

		for _, want := range []string{
			"Never Gonna Give You Up",
			"Rick Astley • Whenever You Need Somebody",
			"1:02 / 3:33",
			"device active • volume 50%",
		} {
			assert.Contains(t, view, want)
		}
	})

	t.Run("idle", func(t *testing.T) {
		player := newFakePlayer()
		player.state = playback.State{}
		view := NewModel(context.Background(), player, nil).View()

		assert.Contains(t, view, "Nothing playing")
		assert.Contains(t, view, "0:00 / 0:00")
		assert.Contains(t, view, "device offline")
	})

	t.Run("degraded", func(t *testing.T) {
		player := newFakePlayer()
		player.state.Degraded = true
		view := NewModel(context.Background(), player, nil).View()

		assert.True(t, strings.Contains(view, "Premium is required"))
	})
}

func TestTrackItem(t *testing.T) {
	item := trackItem{track: models.Track{Name: "Song", Artist: "Artist", Album: "Album", DurationMs: 61000}}

	assert.Equal(t, "Song", item.Title())
	assert.Equal(t, "Artist • 1:01 • Album", item.Description())
	assert.Equal(t, "Artist - Song", item.FilterValue())
}
