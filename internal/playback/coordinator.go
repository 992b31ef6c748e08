package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotui/internal/shared"
	"github.com/jonboulle/clockwork"
)

const defaultBuffer = 64

// Options configures timing and collaborators. A zero AutoTransfer disables transfer on ready.
type Options struct {
	Debounce     time.Duration
	Settle       time.Duration
	Tick         time.Duration
	AutoTransfer time.Duration
	Volume       float64
	Buffer       int
	Clock        clockwork.Clock
	Logger       *log.Logger
}

// DefaultOptions returns the stock timings: 300ms debounce, 500ms settle, 1s tick, 1s auto-transfer.
func DefaultOptions() Options {
	return Options{
		Debounce:     300 * time.Millisecond,
		Settle:       500 * time.Millisecond,
		Tick:         time.Second,
		AutoTransfer: time.Second,
		Volume:       0.5,
	}
}

// OptionsFrom maps the [player] config section onto [Options].
func OptionsFrom(cfg shared.PlayerConfig) Options {
	return Options{
		Debounce:     cfg.Debounce,
		Settle:       cfg.Settle,
		Tick:         cfg.Tick,
		AutoTransfer: cfg.AutoTransfer,
		Volume:       cfg.Volume,
	}
}

// Coordinator owns the player state for one device. Safe for concurrent use.
//
// One mutex guards all state and is never held across a device or network call.
type Coordinator struct {
	device Device
	remote Remote
	clock  clockwork.Clock
	logger *log.Logger
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifyMu     sync.RWMutex
	notify       chan Notification
	notifyClosed bool

	mu            sync.Mutex
	node          Node
	observed      PlayerState
	desired       DesiredState
	lastConfirmed string
	inFlight      bool
	inFlightURI   string
	transferring  bool
	degraded      bool
	lastErr       error
	readyCh       chan struct{}
	debounce      clockwork.Timer
	debounceGen   uint64
	autoTransfer  clockwork.Timer
	ticker        clockwork.Ticker
	tickStop      chan struct{}
	started       bool
	closed        bool
}

// New creates a coordinator for device. Call [Coordinator.Start] to connect it.
func New(device Device, remote Remote, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		device:   device,
		remote:   remote,
		clock:    opts.Clock,
		logger:   shared.WithLogger(opts.Logger, "component", "playback"),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		notify:   make(chan Notification, opts.Buffer),
		observed: PlayerState{Volume: clamp01(opts.Volume)},
		readyCh:  make(chan struct{}),
	}
}

// Start runs the event loop and connects the device. A second call is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return shared.ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(c.device.Events())

	if err := c.device.Connect(ctx); err != nil {
		err = fmt.Errorf("failed to connect device: %w", err)
		c.report(err)
		return err
	}

	c.logger.Debug("device connected")
	return nil
}

// Close cancels pending timers, stops the position ticker and the event loop, then disconnects the device.
// Calling it twice is harmless.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	stopTimer(c.debounce)
	stopTimer(c.autoTransfer)
	c.debounce, c.autoTransfer = nil, nil
	c.stopTicker()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.notifyMu.Lock()
	c.notifyClosed = true
	close(c.notify)
	c.notifyMu.Unlock()

	if !started {
		return nil
	}
	if err := c.device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect device: %w", err)
	}
	return nil
}

// Notifications returns the channel notifications are published to. It is closed by [Coordinator.Close].
//
// Sends never block: when the buffer is full the notification is dropped.
func (c *Coordinator) Notifications() <-chan Notification {
	return c.notify
}

// State returns a snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Node:             c.node,
		Observed:         c.observed,
		Desired:          c.desired,
		LastConfirmedURI: c.lastConfirmed,
		InFlight:         c.inFlight,
		Degraded:         c.degraded,
	}
	if c.desired.Pending != nil {
		pending := *c.desired.Pending
		s.Desired.Pending = &pending
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// WaitReady blocks until the device has signalled Ready.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	if c.observed.IsReady {
		c.mu.Unlock()
		return nil
	}
	ch := c.readyCh
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for device: %w", shared.ErrTimeout, ctx.Err())
	case <-c.ctx.Done():
		return shared.ErrClosed
	}
}

func (c *Coordinator) publish(n Notification) {
	c.notifyMu.RLock()
	defer c.notifyMu.RUnlock()
	if c.notifyClosed {
		return
	}

	select {
	case c.notify <- n:
	default:
		c.logger.Debug("notification dropped", "kind", n.Kind)
	}
}

// report records err and publishes it.
func (c *Coordinator) report(err error) {
	c.mu.Lock()
	c.lastErr = err
	state := c.observed
	c.mu.Unlock()

	c.logger.Warn("playback error", "error", err)
	c.publish(Notification{Kind: ErrorReported, State: state, Err: err})
}

// sleep waits d on the injected clock.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return shared.ErrClosed
	}
}

func stopTimer(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
