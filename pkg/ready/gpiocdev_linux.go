//go:build linux

package ready

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/itohio/gobridge/pkg/log"
)

// DefaultChip is the Raspberry Pi header GPIO chip.
const DefaultChip = "gpiochip0"

// GPIOCDevOptions selects the DRDY line.
type GPIOCDevOptions struct {
	Chip string
	Line int
	// Debounce asks the kernel to filter glitches shorter than the period. Zero disables it.
	Debounce time.Duration
}

// GPIOCDev reports falling edges on a GPIO character-device line.
type GPIOCDev struct {
	line   *gpiocdev.Line
	box    *mailbox
	anchor clockAnchor

	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*GPIOCDev)(nil)

// OpenGPIOCDev requests the line as a pulled-up input with falling edge events.
func OpenGPIOCDev(opts GPIOCDevOptions) (*GPIOCDev, error) {
	if opts.Chip == "" {
		opts.Chip = DefaultChip
	}

	g := &GPIOCDev{
		box:    newMailbox(),
		anchor: newClockAnchor(),
	}

	reqOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(g.handle),
	}
	if opts.Debounce > 0 {
		reqOpts = append(reqOpts, gpiocdev.WithDebounce(opts.Debounce))
	}

	line, err := gpiocdev.RequestLine(opts.Chip, opts.Line, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s line %d: %w", opts.Chip, opts.Line, err)
	}
	g.line = line
	return g, nil
}

func (g *GPIOCDev) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	ts := time.Now()
	if evt.Timestamp > 0 {
		ts = g.anchor.wall(evt.Timestamp)
	}
	g.box.post(Event{Time: ts, Seq: evt.Seqno})
}

// Wait blocks until the next falling edge.
func (g *GPIOCDev) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	return g.box.wait(ctx, timeout)
}

// Overruns counts edges that were replaced before being read.
func (g *GPIOCDev) Overruns() uint64 {
	return g.box.overruns.Load()
}

// Close releases the line. Safe to call more than once.
func (g *GPIOCDev) Close() error {
	g.closeOnce.Do(func() {
		g.box.close()
		if g.line != nil {
			g.closeErr = g.line.Close()
		}
		if n := g.box.overruns.Load(); n > 0 {
			log.Warning("Data ready line dropped %d unread edges", n)
		}
	})
	return g.closeErr
}

// clockAnchor maps kernel CLOCK_MONOTONIC event stamps onto wall time.
type clockAnchor struct {
	wallAt time.Time
	monoAt time.Duration
}

func newClockAnchor() clockAnchor {
	var ts unix.Timespec
	now := time.Now()
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return clockAnchor{}
	}
	return clockAnchor{wallAt: now, monoAt: time.Duration(ts.Nano())}
}

func (a clockAnchor) wall(mono time.Duration) time.Time {
	if a.wallAt.IsZero() {
		return time.Now()
	}
	return a.wallAt.Add(mono - a.monoAt)
}

