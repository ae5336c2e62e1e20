// Package ready waits for the converter's data-ready line.
package ready

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one data-ready transition.
type Event struct {
	// Time is when the edge was observed. Zero when the source cannot tell.
	Time time.Time
	// Seq counts events reported by the source.
	Seq uint32
}

// Source blocks until the next data-ready transition.
type Source interface {
	// Wait returns the next event. A timeout <= 0 waits until ctx is done.
	// It fails with a *TimeoutError when the timeout elapses first and with
	// ctx.Err() when ctx ends.
	Wait(ctx context.Context, timeout time.Duration) (Event, error)
	Close() error
}

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("ready source closed")

// ErrTimeout matches any *TimeoutError with errors.Is.
var ErrTimeout error = &TimeoutError{}

// TimeoutError reports that no ready event arrived within the bound.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no data ready event within %v", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// mailbox holds at most one pending event. Posting over an unread event
// replaces it and counts an overrun, so a slow reader never consumes a
// backlog of edges whose conversions are already overwritten.
type mailbox struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	overruns  atomic.Uint64
}

func newMailbox() *mailbox {
	return &mailbox{
		ch:   make(chan Event, 1),
		done: make(chan struct{}),
	}
}

func (m *mailbox) post(ev Event) {
	for {
		select {
		case m.ch <- ev:
			return
		default:
		}
		select {
		case <-m.ch:
			m.overruns.Add(1)
		default:
		}
	}
}

func (m *mailbox) wait(ctx context.Context, timeout time.Duration) (Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case ev := <-m.ch:
		return ev, nil
	case <-m.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-expired:
		return Event{}, &TimeoutError{After: timeout}
	}
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.done) })
}
