package ready

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultQuantum bounds a single blocking edge wait so cancellation is seen promptly.
const DefaultQuantum = 50 * time.Millisecond

// PeriphPin waits for falling edges through periph.io's edge detection.
type PeriphPin struct {
	pin     gpio.PinIn
	quantum time.Duration
	seq     uint32
	closed  bool
}

var _ Source = (*PeriphPin)(nil)

// OpenPeriphPin configures the named pin (e.g. "GPIO17") as a pulled-up input
// with falling edge detection.
func OpenPeriphPin(name string, quantum time.Duration) (*PeriphPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure GPIO %q for edge detection: %w", name, err)
	}
	return NewPeriphPin(pin, quantum), nil
}

// NewPeriphPin wraps an already configured pin.
func NewPeriphPin(pin gpio.PinIn, quantum time.Duration) *PeriphPin {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &PeriphPin{pin: pin, quantum: quantum}
}

// Wait blocks in slices of at most the quantum until an edge, the timeout or ctx.
func (p *PeriphPin) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	if p.closed {
		return Event{}, ErrClosed
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		slice := p.quantum
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return Event{}, &TimeoutError{After: timeout}
			}
			if left < slice {
				slice = left
			}
		}
		if p.pin.WaitForEdge(slice) {
			ts := time.Now()
			p.seq++
			return Event{Time: ts, Seq: p.seq}, nil
		}
	}
}

// Close disables edge detection.
func (p *PeriphPin) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pin.Halt()
}
