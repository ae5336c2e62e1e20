package ready

import (
	"context"
	"sync/atomic"
	"time"
)

// Chan is a Source fed by Post, for tests and simulated hardware. It keeps
// the newest unread event like the hardware sources do.
type Chan struct {
	box *mailbox
	seq atomic.Uint32
}

var _ Source = (*Chan)(nil)

func NewChan() *Chan {
	return &Chan{box: newMailbox()}
}

// Post reports a ready transition observed at t. A zero t leaves
// timestamping to the reader.
func (c *Chan) Post(t time.Time) {
	c.box.post(Event{Time: t, Seq: c.seq.Add(1)})
}

func (c *Chan) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	return c.box.wait(ctx, timeout)
}

// Overruns returns how many events were replaced before being read.
func (c *Chan) Overruns() uint64 {
	return c.box.overruns.Load()
}

func (c *Chan) Close() error {
	c.box.close()
	return nil
}
