//go:build !linux

package ready

import (
	"context"
	"errors"
	"time"
)

const DefaultChip = "gpiochip0"

// ErrNoGPIOCDev is returned by OpenGPIOCDev on platforms without the GPIO character device.
var ErrNoGPIOCDev = errors.New("gpio character device is only supported on linux")

type GPIOCDevOptions struct {
	Chip     string
	Line     int
	Debounce time.Duration
}

// GPIOCDev cannot be opened outside Linux; its methods report ErrClosed.
type GPIOCDev struct{}

var _ Source = (*GPIOCDev)(nil)

// OpenGPIOCDev is only available on Linux.
func OpenGPIOCDev(opts GPIOCDevOptions) (*GPIOCDev, error) {
	return nil, ErrNoGPIOCDev
}

func (g *GPIOCDev) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	return Event{}, ErrClosed
}

func (g *GPIOCDev) Overruns() uint64 { return 0 }

func (g *GPIOCDev) Close() error { return nil }
