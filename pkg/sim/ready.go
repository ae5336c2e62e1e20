package sim

import (
	"context"
	"sync"
	"time"

	"github.com/itohio/gobridge/pkg/ready"
)

// Ready simulates the DRDY line: it fires once per conversion period while
// ADC1 is running.
type Ready struct {
	chip *Chip

	last time.Time
	seq  uint32

	done      chan struct{}
	closeOnce sync.Once
}

var _ ready.Source = (*Ready)(nil)

// Ready returns a data-ready source driven by the chip's conversions.
func (c *Chip) Ready() *Ready {
	return &Ready{
		chip: c,
		last: time.Now(),
		done: make(chan struct{}),
	}
}

// Wait blocks until the next simulated conversion completes.
func (r *Ready) Wait(ctx context.Context, timeout time.Duration) (ready.Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		delay := time.Until(r.last.Add(r.chip.period()))
		if delay < 0 {
			delay = 0
		}
		tick := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tick.Stop()
			return ready.Event{}, ctx.Err()
		case <-r.done:
			tick.Stop()
			return ready.Event{}, ready.ErrClosed
		case <-expired:
			tick.Stop()
			return ready.Event{}, &ready.TimeoutError{After: timeout}
		case now := <-tick.C:
			r.last = now
			if r.chip.convert(now) {
				r.seq++
				return ready.Event{Time: now, Seq: r.seq}, nil
			}
		}
	}
}

// Close stops the source. Safe to call more than once.
func (r *Ready) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}
