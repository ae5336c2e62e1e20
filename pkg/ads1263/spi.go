package ads1263

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultSpeedHz is a conservative SCLK for the ADS1263 (max ~8 MHz).
	DefaultSpeedHz = 2_000_000
	// resetPulse is the RESET/PWDN low time.
	resetPulse = time.Millisecond
)

// SPIOptions selects the bus and the optional GPIO-driven control lines.
type SPIOptions struct {
	// Port is the periph SPI port name, e.g. "SPI0.0". Empty picks the first port.
	Port string
	// SpeedHz is the SCLK frequency.
	SpeedHz int64
	// ChipSelect names a GPIO used as software chip select, e.g. "GPIO22".
	// Empty relies on the controller's hardware CS.
	ChipSelect string
	// ResetPin names the GPIO wired to RESET/PWDN, e.g. "GPIO18". Optional.
	ResetPin string
}

// SPIPort is a Transport over a periph.io SPI connection.
type SPIPort struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut
	rst  gpio.PinOut
}

var _ Transport = (*SPIPort)(nil)
var _ Resetter = (*SPIPort)(nil)

// OpenSPI initializes the host drivers and opens the converter's SPI port in mode 1.
func OpenSPI(opts SPIOptions) (*SPIPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	if opts.SpeedHz <= 0 {
		opts.SpeedHz = DefaultSpeedHz
	}

	p, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", opts.Port, err)
	}
	conn, err := p.Connect(physic.Frequency(opts.SpeedHz)*physic.Hertz, spi.Mode1, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to connect SPI port %q: %w", opts.Port, err)
	}

	s := &SPIPort{port: p, conn: conn}
	if opts.ChipSelect != "" {
		if s.cs, err = outputPin(opts.ChipSelect, gpio.High); err != nil {
			p.Close()
			return nil, err
		}
	}
	if opts.ResetPin != "" {
		if s.rst, err = outputPin(opts.ResetPin, gpio.High); err != nil {
			p.Close()
			return nil, err
		}
	}
	return s, nil
}

func outputPin(name string, level gpio.Level) (gpio.PinOut, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO %q", name)
	}
	if err := pin.Out(level); err != nil {
		return nil, fmt.Errorf("failed to drive GPIO %q: %w", name, err)
	}
	return pin, nil
}

// Tx performs one chip-selected transaction.
func (s *SPIPort) Tx(w, r []byte) error {
	if s.cs != nil {
		if err := s.cs.Out(gpio.Low); err != nil {
			return err
		}
		defer s.cs.Out(gpio.High)
	}
	return s.conn.Tx(w, r)
}

// Reset pulses RESET/PWDN when a reset pin is configured.
func (s *SPIPort) Reset() error {
	if s.rst == nil {
		return nil
	}
	if err := s.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(resetPulse)
	return s.rst.Out(gpio.High)
}

// Close releases the SPI port.
func (s *SPIPort) Close() error {
	if s.cs != nil {
		s.cs.Out(gpio.High)
	}
	return s.port.Close()
}

func (s *SPIPort) String() string {
	return s.conn.String()
}
