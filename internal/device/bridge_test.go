package device

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) AccessToken(context.Context) (string, error) { return s.token, s.err }

type page struct {
	t    *testing.T
	conn *websocket.Conn
}

func newBridge(t *testing.T, tokens TokenSource, timeout time.Duration) (*Bridge, string) {
	t.Helper()
	b := NewBridge(tokens, BridgeOptions{Name: "spotui test", Volume: 0.5, Timeout: timeout, Logger: shared.NewLogger(io.Discard)})
	srv := httptest.NewServer(b)
	t.Cleanup(func() {
		b.Disconnect()
		srv.Close()
	})
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// attach dials the bridge like the player page does and consumes the init frame.
func attach(t *testing.T, url string) *page {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	p := &page{t: t, conn: conn}
	init := p.read()
	require.Equal(t, frameInit, init["type"])
	return p
}

func (p *page) send(raw string) {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(p.t, p.conn.Write(ctx, websocket.MessageText, []byte(raw)))
}

func (p *page) read() map[string]any {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var msg map[string]any
	require.NoError(p.t, wsjson.Read(ctx, p.conn, &msg))
	return msg
}

const sdkState = `{"type":"state","state":{
	"paused":false,"position":61000,"duration":215000,
	"track_window":{"current_track":{
		"id":"4uLU6hMCjMI75M1A2tKUQC","uri":"spotify:track:4uLU6hMCjMI75M1A2tKUQC","name":"Never Gonna Give You Up",
		"duration_ms":215000,"album":{"name":"Whenever You Need Somebody"},
		"artists":[{"name":"Rick Astley"},{"name":"Stock Aitken Waterman"}]}}}}`

func TestBridgeEvents(t *testing.T) {
	b, url := newBridge(t, staticToken{token: "tok"}, time.Second)
	require.NoError(t, b.Connect(context.Background()))

	p := attach(t, url)
	events := b.Events()

	t.Run("ready", func(t *testing.T) {
		p.send(`{"type":"ready","device_id":"web-1"}`)
		assert.Equal(t, playback.Ready{DeviceID: "web-1"}, next(t, events))
		assert.True(t, b.Attached())
	})

	t.Run("state", func(t *testing.T) {
		p.send(sdkState)

		ev, ok := next(t, events).(playback.StateChanged)
		require.True(t, ok)
		require.NotNil(t, ev.State)
		assert.Equal(t, "spotify:track:4uLU6hMCjMI75M1A2tKUQC", ev.State.Track.URI)
		assert.Equal(t, "Rick Astley, Stock Aitken Waterman", ev.State.Track.Artist)
		assert.Equal(t, "Whenever You Need Somebody", ev.State.Track.Album)
		assert.Equal(t, 61000, ev.State.PositionMs)
		assert.Equal(t, 215000, ev.State.DurationMs)
		assert.False(t, ev.State.Paused)
	})

	t.Run("null state", func(t *testing.T) {
		p.send(`{"type":"state","state":null}`)
		assert.Equal(t, playback.StateChanged{State: nil}, next(t, events))
	})

	t.Run("errors", func(t *testing.T) {
		p.send(`{"type":"error","kind":"account_error","message":"Premium required"}`)

		ev, ok := next(t, events).(playback.DeviceError)
		require.True(t, ok)
		assert.Equal(t, playback.AccountError, ev.Kind)
		assert.ErrorIs(t, ev, shared.ErrPremiumRequired)
	})

	t.Run("malformed frames are skipped", func(t *testing.T) {
		p.send(`not json`)
		p.send(`{"type":"mystery"}`)
		p.send(`{"type":"not_ready","device_id":"web-1"}`)
		assert.Equal(t, playback.NotReady{DeviceID: "web-1"}, next(t, events))
	})

	t.Run("token requests", func(t *testing.T) {
		p.send(`{"type":"token_request","id":"t-1"}`)
		reply := p.read()
		assert.Equal(t, frameToken, reply["type"])
		assert.Equal(t, "t-1", reply["id"])
		assert.Equal(t, "tok", reply["token"])
	})
}

func TestBridgeTokenFailure(t *testing.T) {
	b, url := newBridge(t, staticToken{err: shared.ErrNotAuthenticated}, time.Second)
	require.NoError(t, b.Connect(context.Background()))

	p := attach(t, url)
	p.send(`{"type":"token_request","id":"t-2"}`)

	reply := p.read()
	assert.Equal(t, "t-2", reply["id"])
	assert.Nil(t, reply["token"])
	assert.Contains(t, reply["error"], "not authenticated")
}

func TestBridgeCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("before a page attaches", func(t *testing.T) {
		b, _ := newBridge(t, staticToken{}, time.Second)
		assert.ErrorIs(t, b.TogglePlay(ctx), shared.ErrDeviceNotReady)
	})

	t.Run("acknowledged", func(t *testing.T) {
		b, url := newBridge(t, staticToken{}, time.Second)
		p := attach(t, url)
		p.send(`{"type":"ready","device_id":"web-1"}`)
		next(t, b.Events())

		errCh := make(chan error, 1)
		go func() { errCh <- b.Seek(ctx, 42000) }()

		cmd := p.read()
		assert.Equal(t, frameCommand, cmd["type"])
		assert.Equal(t, "seek", cmd["command"])
		assert.EqualValues(t, 42000, cmd["position_ms"])
		require.NotEmpty(t, cmd["id"])

		p.send(`{"type":"result","id":"` + cmd["id"].(string) + `"}`)
		require.NoError(t, <-errCh)

		go func() { errCh <- b.SetVolume(ctx, 0.3) }()
		cmd = p.read()
		assert.Equal(t, "volume", cmd["command"])
		assert.InDelta(t, 0.3, cmd["volume"], 1e-9)

		p.send(`{"type":"result","id":"` + cmd["id"].(string) + `","error":"no list was loaded"}`)
		err := <-errCh
		assert.ErrorIs(t, err, shared.ErrCommandFailed)
		assert.Contains(t, err.Error(), "no list was loaded")
	})

	t.Run("unanswered", func(t *testing.T) {
		b, url := newBridge(t, staticToken{}, 50*time.Millisecond)
		p := attach(t, url)
		p.send(`{"type":"ready","device_id":"web-1"}`)
		next(t, b.Events())

		errCh := make(chan error, 1)
		go func() { errCh <- b.NextTrack(ctx) }()
		assert.Equal(t, "next", p.read()["command"])
		assert.ErrorIs(t, <-errCh, shared.ErrTimeout)
	})

	t.Run("page leaving fails pending commands", func(t *testing.T) {
		b, url := newBridge(t, staticToken{}, time.Second)
		p := attach(t, url)
		p.send(`{"type":"ready","device_id":"web-1"}`)
		next(t, b.Events())

		errCh := make(chan error, 1)
		go func() { errCh <- b.PreviousTrack(ctx) }()
		assert.Equal(t, "previous", p.read()["command"])

		p.conn.Close(websocket.StatusNormalClosure, "tab closed")
		assert.ErrorIs(t, <-errCh, shared.ErrDeviceNotReady)
		assert.Equal(t, playback.NotReady{DeviceID: "web-1"}, next(t, b.Events()))
		require.Eventually(t, func() bool { return !b.Attached() }, time.Second, 5*time.Millisecond)
	})
}

func TestBridgeSingleton(t *testing.T) {
	b, url := newBridge(t, staticToken{}, time.Second)
	attach(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Disconnect())
	for range b.Events() {
	}
	assert.ErrorIs(t, b.Connect(ctx), shared.ErrClosed)
	assert.ErrorIs(t, b.TogglePlay(ctx), shared.ErrClosed)
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want playback.Event
	}{
		{"ready", `{"type":"ready","device_id":"d"}`, playback.Ready{DeviceID: "d"}},
		{"not ready", `{"type":"not_ready","device_id":"d"}`, playback.NotReady{DeviceID: "d"}},
		{"missing state", `{"type":"state"}`, playback.StateChanged{}},
		{"error without kind", `{"type":"error","message":"boom"}`, playback.DeviceError{Kind: playback.PlaybackError, Message: "boom"}},
		{"unknown", `{"type":"result","id":"x"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEvent([]byte(tt.raw))
			if got != tt.want {
				t.Errorf("parseEvent(%s) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
