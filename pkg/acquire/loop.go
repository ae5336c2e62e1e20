// Package acquire runs the wait, read, convert and persist cycle.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/ready"
	"github.com/itohio/gobridge/pkg/sample"
	"github.com/itohio/gobridge/pkg/sink"
)

var (
	ErrStarted = errors.New("acquisition loop already started")
	ErrPanic   = errors.New("acquisition loop panicked")
)

// Converter reads one conversion result. *ads1263.Device implements it.
type Converter interface {
	ReadRaw(ch ads1263.Channel) (int32, error)
}

// Options configures a Loop.
type Options struct {
	Channel ads1263.Channel
	Scale   sample.Scale
	// ReadyTimeout bounds each wait for a ready event. Zero waits until cancelled.
	ReadyTimeout time.Duration
	// DegradedAfter consecutive failed cycles mark the loop degraded. Zero disables.
	DegradedAfter int
	// MaxSamples stops the loop after N persisted samples. Zero runs until cancelled.
	MaxSamples int
	// OnSample is called with every persisted sample.
	OnSample func(sample.Sample)
	// OnHealth is called when the degraded flag changes.
	OnHealth func(Stats)
	// Clock timestamps events whose source cannot. Defaults to time.Now.
	Clock func() time.Time
}

// Stats is a snapshot of loop counters.
type Stats struct {
	State       State         `json:"state"`
	Samples     int           `json:"samples"`
	ReadErrors  int           `json:"read_errors"`
	Timeouts    int           `json:"timeouts"`
	Consecutive int           `json:"consecutive_failures"`
	Degraded    bool          `json:"degraded"`
	LastError   string        `json:"last_error,omitempty"`
	Last        sample.Sample `json:"-"`
	Started     time.Time     `json:"started"`
}

// Loop drives one acquisition. It is single use.
type Loop struct {
	dev  Converter
	src  ready.Source
	snk  sink.Sink
	opts Options

	state atomic.Int32
	last  time.Time
	count int

	mu    sync.Mutex
	stats Stats
}

func New(dev Converter, src ready.Source, snk sink.Sink, opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Loop{
		dev:  dev,
		src:  src,
		snk:  snk,
		opts: opts,
	}
}

// State returns the current phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.State = l.State()
	return s
}

// Run loops until ctx ends, MaxSamples are persisted or a fatal error
// occurs. Cancellation returns nil. Sink failures are returned as *sink.Error.
// Read failures and ready timeouts are counted and the loop continues.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.state.CompareAndSwap(int32(Idle), int32(WaitingForReady)) {
		return ErrStarted
	}
	defer l.setState(Stopped)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			log.Error("Acquisition loop: %v", err)
		}
	}()

	l.mu.Lock()
	l.stats.Started = l.opts.Clock()
	l.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if l.opts.MaxSamples > 0 && l.count >= l.opts.MaxSamples {
			log.Info("Acquired %d samples, stopping", l.opts.MaxSamples)
			return nil
		}
		if err := l.cycle(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
	}
}

// cycle performs one wait, read, convert and persist pass. It returns only
// fatal errors.
func (l *Loop) cycle(ctx context.Context) error {
	l.setState(WaitingForReady)
	ev, err := l.src.Wait(ctx, l.opts.ReadyTimeout)
	if err != nil {
		if errors.Is(err, ready.ErrTimeout) {
			log.Warning("Data ready: %v", err)
			l.fail(err, &l.stats.Timeouts)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to wait for data ready: %w", err)
	}
	ts := l.timestamp(ev)

	l.setState(Sampling)
	raw, err := l.dev.ReadRaw(l.opts.Channel)
	if err != nil {
		log.Warning("Skipping sample: %v", err)
		l.fail(err, &l.stats.ReadErrors)
		return nil
	}

	l.setState(Delivering)
	smp := sample.Sample{Timestamp: ts, Voltage: l.opts.Scale.Volts(raw)}
	if err := l.snk.Append(smp); err != nil {
		var se *sink.Error
		if !errors.As(err, &se) {
			err = &sink.Error{Op: "append", Err: err}
		}
		return err
	}
	l.last = ts
	l.count++
	l.succeed(smp)

	if l.opts.OnSample != nil {
		l.opts.OnSample(smp)
	}
	return nil
}

// timestamp picks the event time, falling back to the clock, and keeps the
// series strictly increasing. The monotonic reading is dropped so ordering
// holds for the persisted wall time.
func (l *Loop) timestamp(ev ready.Event) time.Time {
	ts := ev.Time
	if ts.IsZero() {
		ts = l.opts.Clock()
	}
	ts = ts.Round(0)
	if !l.last.IsZero() && !ts.After(l.last) {
		ts = l.last.Add(time.Nanosecond)
	}
	return ts
}

func (l *Loop) fail(err error, counter *int) {
	l.mu.Lock()
	*counter++
	l.stats.Consecutive++
	l.stats.LastError = err.Error()
	changed := false
	if l.opts.DegradedAfter > 0 && !l.stats.Degraded && l.stats.Consecutive >= l.opts.DegradedAfter {
		l.stats.Degraded = true
		changed = true
	}
	snapshot := l.stats
	l.mu.Unlock()

	if changed {
		log.Warning("Acquisition degraded after %d consecutive failures: %v", snapshot.Consecutive, err)
		l.notifyHealth(snapshot)
	}
}

func (l *Loop) succeed(smp sample.Sample) {
	l.mu.Lock()
	l.stats.Samples++
	l.stats.Last = smp
	l.stats.Consecutive = 0
	changed := l.stats.Degraded
	l.stats.Degraded = false
	snapshot := l.stats
	l.mu.Unlock()

	if changed {
		log.Info("Acquisition recovered")
		l.notifyHealth(snapshot)
	}
}

func (l *Loop) notifyHealth(s Stats) {
	if l.opts.OnHealth == nil {
		return
	}
	s.State = l.State()
	l.opts.OnHealth(s)
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}
