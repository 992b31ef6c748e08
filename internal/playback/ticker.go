package playback

import "time"

// startTicker begins local position tracking. Caller holds mu.
func (c *Coordinator) startTicker() {
	if c.ticker != nil || c.closed || c.opts.Tick <= 0 {
		return
	}

	t := c.clock.NewTicker(c.opts.Tick)
	stop := make(chan struct{})
	c.ticker, c.tickStop = t, stop

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-t.Chan():
				c.advance()
			}
		}
	}()
}

// stopTicker halts position tracking. Caller holds mu.
func (c *Coordinator) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickStop)
	c.ticker, c.tickStop = nil, nil
}

// advance moves the playhead one tick, never past the track end.
func (c *Coordinator) advance() {
	c.mu.Lock()
	if c.closed || !c.observed.IsPlaying {
		c.mu.Unlock()
		return
	}
	c.observed.PositionMs = c.clampPosition(c.observed.PositionMs + int(c.opts.Tick/time.Millisecond))
	state := c.observed
	c.mu.Unlock()

	c.publish(Notification{Kind: PositionChanged, State: state})
}
