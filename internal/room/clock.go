package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/obslog"
	"go.uber.org/zap"
)

const defaultClockInterval = time.Second

// Clock periodically flags rooms in the playing index whose side to move has
// run out of time. It races with Move through the same revision-checked
// update, so only one of the two can commit.
type Clock struct {
	m        *Manager
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewClock(m *Manager, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = defaultClockInterval
	}
	return &Clock{m: m, interval: interval}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
	obslog.L().Info("room_clock_start", zap.Duration("interval", c.interval))
}

// Stop ends the loop and waits for the current sweep to finish.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Clock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.Sweep(ctx); err != nil && ctx.Err() == nil {
				obslog.L().Warn("room_clock_sweep_error", zap.Error(err))
			}
		}
	}
}

// Sweep checks every playing room once and returns how many were flagged.
func (c *Clock) Sweep(ctx context.Context) (int, error) {
	ids, err := c.m.store.PlayingRooms(ctx)
	if err != nil {
		return 0, err
	}
	flagged := 0
	for _, id := range ids {
		_, ok, err := c.m.Timeout(ctx, id)
		switch {
		case errors.Is(err, ErrRoomNotFound):
			_ = c.m.store.ForgetPlaying(ctx, id)
		case errors.Is(err, ErrConflict):
			obslog.L().Debug("room_clock_conflict", zap.String("room_id", id))
		case err != nil:
			obslog.L().Warn("room_clock_timeout_error", zap.String("room_id", id), zap.Error(err))
		case ok:
			flagged++
		}
	}
	return flagged, nil
}
