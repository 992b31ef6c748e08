package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultCommandTimeout = 10 * time.Second
	eventBuffer           = 32
)

// TokenSource supplies access tokens to the SDK. [auth.TokenManager] implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// BridgeOptions configures a [Bridge].
type BridgeOptions struct {
	Name    string        // player name shown in Spotify Connect
	Volume  float64       // initial volume in [0, 1]
	Timeout time.Duration // how long a command waits for the page
	Logger  *log.Logger
}

// Bridge is the Web Playback SDK device. It is an [http.Handler] for the page's WebSocket.
type Bridge struct {
	tokens  TokenSource
	name    string
	volume  float64
	timeout time.Duration
	logger  *log.Logger

	events    chan playback.Event
	done      chan struct{}
	closeOnce sync.Once
	emitMu    sync.RWMutex
	emitDone  bool

	mu       sync.Mutex
	attached bool
	conn     *websocket.Conn
	deviceID string
	pending  map[string]chan error
	closed   bool
}

// NewBridge creates a bridge answering token requests from tokens.
func NewBridge(tokens TokenSource, opts BridgeOptions) *Bridge {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCommandTimeout
	}
	if opts.Name == "" {
		opts.Name = "spotui"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Bridge{
		tokens:  tokens,
		name:    opts.Name,
		volume:  min(max(opts.Volume, 0), 1),
		timeout: opts.Timeout,
		logger:  shared.WithLogger(opts.Logger, "device", "bridge"),
		events:  make(chan playback.Event, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan error),
	}
}

// Connect prepares the bridge. The device becomes ready once a page attaches and the SDK reports ready.
func (b *Bridge) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return shared.ErrClosed
	}
	b.logger.Info("waiting for player page")
	return nil
}

// Disconnect detaches the page, fails pending commands and closes the event channel.
func (b *Bridge) Disconnect() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		conn := b.conn
		b.failPending(shared.ErrClosed)
		b.mu.Unlock()

		close(b.done)
		if conn != nil {
			conn.Close(websocket.StatusGoingAway, "player closed")
		}

		b.emitMu.Lock()
		b.emitDone = true
		close(b.events)
		b.emitMu.Unlock()
	})
	return nil
}

func (b *Bridge) Events() <-chan playback.Event { return b.events }

// Attached reports whether a page is connected.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// ServeHTTP upgrades the page's request. A second page is refused with 409 while one is attached.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		http.Error(w, "player closed", http.StatusServiceUnavailable)
		return
	case b.attached:
		b.mu.Unlock()
		http.Error(w, "a player page is already connected", http.StatusConflict)
		return
	}
	b.attached = true
	b.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		b.mu.Lock()
		b.attached = false
		b.mu.Unlock()
		return
	}

	id := uuid.NewString()
	logger := shared.WithLogger(b.logger, "conn_id", id)

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	defer b.detach(conn, logger)

	logger.Info("player page attached", "remote", r.RemoteAddr)

	ctx := r.Context()
	volume := b.volume
	if err := b.write(ctx, conn, frame{Type: frameInit, Name: b.name, Volume: &volume}); err != nil {
		logger.Warn("failed to send init frame", "error", err)
		return
	}

	b.read(ctx, conn, logger)
}

func (b *Bridge) read(ctx context.Context, conn *websocket.Conn, logger *log.Logger) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.Debug("read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageText || !gjson.ValidBytes(data) {
			logger.Debug("ignoring malformed frame", "bytes", len(data))
			continue
		}

		switch kind := gjson.GetBytes(data, "type").String(); kind {
		case frameTokenRequest:
			go b.answerToken(ctx, conn, gjson.GetBytes(data, "id").String(), logger)
		case frameResult:
			b.resolve(gjson.GetBytes(data, "id").String(), gjson.GetBytes(data, "error").String())
		default:
			ev := parseEvent(data)
			if ev == nil {
				logger.Debug("ignoring unknown frame", "type", kind)
				continue
			}
			b.track(ev)
			b.emit(ctx, ev)
		}
	}
}

// track keeps the SDK device id so commands can be refused before the SDK is ready.
func (b *Bridge) track(ev playback.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch e := ev.(type) {
	case playback.Ready:
		b.deviceID = e.DeviceID
	case playback.NotReady:
		b.deviceID = ""
	}
}

func (b *Bridge) detach(conn *websocket.Conn, logger *log.Logger) {
	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	deviceID := b.deviceID
	b.conn, b.deviceID = nil, ""
	b.attached = false
	b.failPending(shared.ErrDeviceNotReady)
	b.mu.Unlock()

	conn.CloseNow()
	logger.Info("player page detached")

	if deviceID != "" {
		b.emit(context.Background(), playback.NotReady{DeviceID: deviceID})
	}
}

func (b *Bridge) answerToken(ctx context.Context, conn *websocket.Conn, id string, logger *log.Logger) {
	reply := frame{Type: frameToken, ID: id}

	token, err := b.tokens.AccessToken(ctx)
	if err != nil {
		logger.Warn("token request failed", "error", err)
		reply.Error = err.Error()
	} else {
		reply.Token = token
	}

	if err := b.write(ctx, conn, reply); err != nil {
		logger.Debug("failed to send token", "error", err)
	}
}

// emit delivers ev unless the bridge is closing.
func (b *Bridge) emit(ctx context.Context, ev playback.Event) {
	b.emitMu.RLock()
	defer b.emitMu.RUnlock()
	if b.emitDone {
		return
	}

	select {
	case b.events <- ev:
	case <-b.done:
	case <-ctx.Done():
	}
}

func (b *Bridge) write(ctx context.Context, conn *websocket.Conn, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}

// resolve completes the pending command id.
func (b *Bridge) resolve(id, message string) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("result for unknown command", "id", id)
		return
	}

	var err error
	if message != "" {
		err = errors.New(message)
	}
	ch <- err
}

// failPending resolves every outstanding command with err. Caller holds mu.
func (b *Bridge) failPending(err error) {
	for id, ch := range b.pending {
		ch <- err
		delete(b.pending, id)
	}
}

// send issues a command and waits for the page to acknowledge it.
func (b *Bridge) send(ctx context.Context, f frame) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return shared.ErrClosed
	}
	conn := b.conn
	if conn == nil || b.deviceID == "" {
		b.mu.Unlock()
		return shared.ErrDeviceNotReady
	}
	id := uuid.NewString()
	ch := make(chan error, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	f.Type, f.ID = frameCommand, id
	if err := wsjson.Write(ctx, conn, f); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrCommandFailed, f.Command, err)
	}

	select {
	case err := <-ch:
		if err != nil && !errors.Is(err, shared.ErrDeviceNotReady) && !errors.Is(err, shared.ErrClosed) {
			return fmt.Errorf("%w: %s: %w", shared.ErrCommandFailed, f.Command, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: no response from player page", shared.ErrTimeout, f.Command)
	}
}

func (b *Bridge) TogglePlay(ctx context.Context) error {
	return b.send(ctx, frame{Command: "toggle"})
}

func (b *Bridge) Seek(ctx context.Context, positionMs int) error {
	return b.send(ctx, frame{Command: "seek", PositionMs: &positionMs})
}

func (b *Bridge) SetVolume(ctx context.Context, volume float64) error {
	return b.send(ctx, frame{Command: "volume", Volume: &volume})
}

func (b *Bridge) NextTrack(ctx context.Context) error {
	return b.send(ctx, frame{Command: "next"})
}

func (b *Bridge) PreviousTrack(ctx context.Context) error {
	return b.send(ctx, frame{Command: "previous"})
}

var _ playback.Device = (*Bridge)(nil)
