package ready

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LevelReader samples the data-ready line level. High means idle.
type LevelReader interface {
	Level() (bool, error)
}

// PinLevel adapts a periph.io input pin to LevelReader.
type PinLevel struct {
	Pin gpio.PinIn
}

func (p PinLevel) Level() (bool, error) {
	return p.Pin.Read() == gpio.High, nil
}

// Synchronizer turns level polling into edge events: it reports exactly one
// event per high-to-low transition. A level must be read Stable times in a
// row before it is accepted.
type Synchronizer struct {
	in       LevelReader
	interval time.Duration
	stable   int

	level     bool
	primed    bool
	candidate bool
	run       int
	seq       uint32
	closed    bool
}

var _ Source = (*Synchronizer)(nil)

// OpenPoll polls the named pin for platforms without edge detection.
func OpenPoll(name string, interval time.Duration, stable int) (*Synchronizer, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure GPIO %q as input: %w", name, err)
	}
	return NewSynchronizer(PinLevel{Pin: pin}, interval, stable), nil
}

// NewSynchronizer polls in at the given interval. stable < 1 is treated as 1.
func NewSynchronizer(in LevelReader, interval time.Duration, stable int) *Synchronizer {
	if stable < 1 {
		stable = 1
	}
	return &Synchronizer{in: in, interval: interval, stable: stable}
}

// Wait polls until the next accepted falling transition.
func (s *Synchronizer) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	if s.closed {
		return Event{}, ErrClosed
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		high, err := s.in.Level()
		if err != nil {
			return Event{}, err
		}
		if s.accept(high) {
			s.seq++
			return Event{Time: time.Now(), Seq: s.seq}, nil
		}

		if s.interval <= 0 {
			select {
			case <-ctx.Done():
				return Event{}, ctx.Err()
			case <-expired:
				return Event{}, &TimeoutError{After: timeout}
			default:
			}
			continue
		}
		tick := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			tick.Stop()
			return Event{}, ctx.Err()
		case <-expired:
			tick.Stop()
			return Event{}, &TimeoutError{After: timeout}
		case <-tick.C:
		}
	}
}

// accept debounces one sample and reports whether it completed a falling edge.
func (s *Synchronizer) accept(high bool) bool {
	if !s.primed {
		s.level, s.candidate, s.run, s.primed = high, high, s.stable, true
		return false
	}
	if high != s.candidate {
		s.candidate = high
		s.run = 0
	}
	s.run++
	if s.run < s.stable || s.candidate == s.level {
		return false
	}
	falling := s.level && !s.candidate
	s.level = s.candidate
	return falling
}

func (s *Synchronizer) Close() error {
	s.closed = true
	return nil
}
