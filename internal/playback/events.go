package playback

// loop consumes device events in delivery order until the coordinator closes or the channel does.
func (c *Coordinator) loop(events <-chan Event) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.logger.Debug("device event stream closed")
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev Event) {
	switch e := ev.(type) {
	case Ready:
		c.onReady(e)
	case NotReady:
		c.onNotReady(e)
	case StateChanged:
		c.onStateChanged(e.State)
	case DeviceError:
		c.onError(e)
	default:
		c.logger.Warn("unknown device event", "event", ev)
	}
}

func (c *Coordinator) onReady(e Ready) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.node == Uninitialized || c.observed.DeviceID != e.DeviceID {
		c.node = Inactive
		c.observed.IsActive = false
	}
	c.observed.IsReady = true
	c.observed.DeviceID = e.DeviceID

	select {
	case <-c.readyCh:
	default:
		close(c.readyCh)
	}

	if c.opts.AutoTransfer > 0 && c.node == Inactive {
		stopTimer(c.autoTransfer)
		c.autoTransfer = c.clock.AfterFunc(c.opts.AutoTransfer, c.autoActivate)
	}
	state := c.observed
	c.mu.Unlock()

	c.logger.Info("device ready", "device_id", e.DeviceID)
	c.publish(Notification{Kind: StateUpdated, State: state})
}

func (c *Coordinator) onNotReady(e NotReady) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.observed.IsReady = false
	c.observed.IsActive = false
	c.observed.IsPlaying = false
	if c.node != Uninitialized {
		c.node = Inactive
	}
	stopTimer(c.autoTransfer)
	c.autoTransfer = nil
	c.stopTicker()

	select {
	case <-c.readyCh:
		c.readyCh = make(chan struct{})
	default:
	}
	state := c.observed
	c.mu.Unlock()

	c.logger.Warn("device went offline", "device_id", e.DeviceID)
	c.publish(Notification{Kind: StateUpdated, State: state})
}

// onStateChanged records the device report. The track change is announced only for URIs the coordinator
// neither confirmed nor has in flight; the latch then moves to that URI.
func (c *Coordinator) onStateChanged(s *DeviceState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if s == nil {
		c.observed.IsPlaying = false
		c.observed.IsActive = false
		if c.node == Active {
			c.node = Inactive
		}
		c.stopTicker()
		state := c.observed
		c.mu.Unlock()

		c.publish(Notification{Kind: StateUpdated, State: state})
		return
	}

	uri := s.Track.URI
	c.observed.CurrentTrackURI = uri
	c.observed.Track = s.Track
	c.observed.DurationMs = max(s.DurationMs, 0)
	c.observed.PositionMs = c.clampPosition(s.PositionMs)
	c.observed.IsPlaying = !s.Paused

	changed := uri != "" && uri != c.lastConfirmed && uri != c.inFlightURI
	if changed {
		c.lastConfirmed = uri
		c.desired.TrackURI = uri
	}

	if c.observed.IsPlaying {
		c.startTicker()
	} else {
		c.stopTicker()
	}
	state := c.observed
	c.mu.Unlock()

	c.publish(Notification{Kind: StateUpdated, State: state})
	if changed {
		c.logger.Debug("track changed on device", "uri", uri)
		c.publish(Notification{Kind: TrackChanged, State: state, URI: uri})
	}
}

func (c *Coordinator) onError(e DeviceError) {
	c.mu.Lock()
	if e.Kind == AccountError {
		c.degraded = true
	}
	c.mu.Unlock()

	c.report(e)
}

// clampPosition bounds ms to [0, DurationMs]. Caller holds mu.
func (c *Coordinator) clampPosition(ms int) int {
	ms = max(ms, 0)
	if d := c.observed.DurationMs; d > 0 && ms > d {
		return d
	}
	return ms
}
