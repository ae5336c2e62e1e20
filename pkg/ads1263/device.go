package ads1263

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/itohio/gobridge/pkg/log"
)

const (
	// DefaultBusTimeout bounds a single bus transaction.
	DefaultBusTimeout = 100 * time.Millisecond
	// DefaultResetDelay is the settle time after a RESET command.
	DefaultResetDelay = 10 * time.Millisecond
)

// Transport exchanges one full-duplex transaction with the converter.
// periph.io spi.Conn satisfies it.
type Transport interface {
	Tx(w, r []byte) error
}

// Resetter is implemented by transports that can pulse the hardware reset line.
type Resetter interface {
	Reset() error
}

// Options tunes a Device.
type Options struct {
	// BusTimeout bounds each transaction. Zero disables the bound.
	BusTimeout time.Duration
	// ResetDelay is waited after RESET before the ID register is read.
	ResetDelay time.Duration
}

// Device drives ADC1 of an ADS1263.
type Device struct {
	t    Transport
	opts Options

	// idle holds a token while no transaction is in flight.
	idle chan struct{}

	revision   uint8
	cfg        Config
	configured bool
	channel    Channel
	selected   bool

	closeOnce sync.Once
	closed    bool
}

// New creates a Device on top of t. Call Initialize and Configure before ReadRaw.
func New(t Transport, opts Options) *Device {
	d := &Device{
		t:    t,
		opts: opts,
		idle: make(chan struct{}, 1),
	}
	d.idle <- struct{}{}
	return d
}

// Initialize resets the converter and validates its identity.
func (d *Device) Initialize() error {
	if d.closed {
		return &InitError{Err: ErrShutdown}
	}
	if r, ok := d.t.(Resetter); ok {
		if err := r.Reset(); err != nil {
			return &InitError{Err: fmt.Errorf("hardware reset: %w", err)}
		}
	}
	if err := d.command(CmdReset); err != nil {
		return &InitError{Err: fmt.Errorf("reset: %w", err)}
	}
	if d.opts.ResetDelay > 0 {
		time.Sleep(d.opts.ResetDelay)
	}

	id, err := d.ReadRegister(RegID)
	if err != nil {
		return &InitError{Err: fmt.Errorf("read id: %w", err)}
	}
	if dev := id >> DevIDShift; dev != DevIDADS1263 {
		return &InitError{Err: fmt.Errorf("%w: id register 0x%02x (device id %d)", ErrBadSignature, id, dev)}
	}
	d.revision = id & RevIDMask
	d.configured = false
	d.selected = false

	log.Debug("ADS1263 revision %d detected", d.revision)
	return nil
}

// Revision returns the revision read by Initialize.
func (d *Device) Revision() uint8 {
	return d.revision
}

// Configure validates cfg, writes it to the control registers, verifies every
// write by reading it back and starts continuous ADC1 conversions.
func (d *Device) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if d.closed {
		return &ConfigError{Err: ErrShutdown}
	}

	if err := d.command(CmdStop1); err != nil {
		return &ConfigError{Field: "stop", Err: err}
	}

	mode0, mode1, mode2, refmux := cfg.Registers()
	writes := []struct {
		field string
		reg   byte
		value byte
	}{
		{"interface", RegInterface, InterfaceDefault},
		{"chop", RegMode0, mode0},
		{"filter", RegMode1, mode1},
		{"gain/rate", RegMode2, mode2},
		{"reference", RegRefMux, refmux},
	}
	for _, w := range writes {
		if err := d.writeVerified(w.reg, w.value); err != nil {
			return &ConfigError{Field: w.field, Err: err}
		}
	}

	if err := d.command(CmdStart1); err != nil {
		return &ConfigError{Field: "start", Err: err}
	}

	d.cfg = cfg
	d.configured = true
	d.selected = false
	log.Debug("ADS1263 configured: %s", cfg)
	return nil
}

// Config returns the settings applied by the last successful Configure.
func (d *Device) Config() (Config, bool) {
	return d.cfg, d.configured
}

// SelectChannel routes ch to ADC1. The next ready event carries a result for ch.
func (d *Device) SelectChannel(ch Channel) error {
	mode := d.cfg.Mode
	if err := ch.Validate(mode); err != nil {
		return err
	}
	if err := d.writeVerified(RegInpMux, ch.Mux()); err != nil {
		return &ConfigError{Field: "channel", Err: err}
	}
	d.channel = ch
	d.selected = true
	return nil
}

// ReadRaw reads the latest ADC1 conversion for ch. It must follow a ready
// event. A request for a channel other than the selected one switches the
// multiplexer and fails with ErrChannelSwitched for this cycle.
func (d *Device) ReadRaw(ch Channel) (int32, error) {
	if d.closed {
		return 0, &ReadError{Err: ErrShutdown}
	}
	if !d.configured {
		return 0, &ReadError{Err: ErrNotConfigured}
	}
	if !d.selected || ch != d.channel {
		if err := d.SelectChannel(ch); err != nil {
			return 0, &ReadError{Err: err}
		}
		return 0, &ReadError{Err: ErrChannelSwitched}
	}

	// opcode, status, 4 data bytes, checksum
	w := make([]byte, 7)
	r := make([]byte, 7)
	w[0] = CmdRData1
	if err := d.tx(w, r); err != nil {
		return 0, &ReadError{Err: err}
	}

	status := r[1]
	data := r[2:6]
	if Checksum(data) != r[6] {
		return 0, &ReadError{Err: fmt.Errorf("%w: got 0x%02x want 0x%02x", ErrChecksum, r[6], Checksum(data))}
	}
	if status&StatusADC1 == 0 {
		return 0, &ReadError{Err: fmt.Errorf("%w: status 0x%02x", ErrStale, status)}
	}
	if status&StatusReset != 0 {
		log.Warning("ADS1263 reports a reset since configuration (status 0x%02x)", status)
	}

	return int32(binary.BigEndian.Uint32(data)), nil
}

// ReadRegister reads one register.
func (d *Device) ReadRegister(reg byte) (byte, error) {
	w := []byte{CmdRReg | reg&0x1F, 0x00, 0x00}
	r := make([]byte, len(w))
	if err := d.tx(w, r); err != nil {
		return 0, err
	}
	return r[2], nil
}

// WriteRegister writes one register without verification.
func (d *Device) WriteRegister(reg, value byte) error {
	return d.tx([]byte{CmdWReg | reg&0x1F, 0x00, value}, make([]byte, 3))
}

// Registers dumps the whole register map.
func (d *Device) Registers() ([]byte, error) {
	regs := make([]byte, NumRegisters)
	for i := range regs {
		v, err := d.ReadRegister(byte(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read register 0x%02x: %w", i, err)
		}
		regs[i] = v
	}
	return regs, nil
}

// Shutdown stops conversions and releases the transport. It is safe to call
// more than once; failures are logged.
func (d *Device) Shutdown() error {
	d.closeOnce.Do(func() {
		if err := d.command(CmdStop1); err != nil {
			log.Debug("ADS1263 stop on shutdown: %v", err)
		}
		if c, ok := d.t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warning("Error closing converter transport: %v", err)
			}
		}
		d.closed = true
		d.configured = false
	})
	return nil
}

func (d *Device) writeVerified(reg, value byte) error {
	if err := d.WriteRegister(reg, value); err != nil {
		return err
	}
	got, err := d.ReadRegister(reg)
	if err != nil {
		return err
	}
	if got != value {
		return fmt.Errorf("%w: register 0x%02x wrote 0x%02x read 0x%02x", ErrNotAcknowledged, reg, value, got)
	}
	return nil
}

func (d *Device) command(op byte) error {
	return d.tx([]byte{op}, make([]byte, 1))
}

// tx runs one transaction bounded by BusTimeout. A transaction that outlives
// the bound keeps the bus until it returns; calls made meanwhile fail with
// ErrBusBusy.
func (d *Device) tx(w, r []byte) error {
	select {
	case <-d.idle:
	default:
		return ErrBusBusy
	}

	if d.opts.BusTimeout <= 0 {
		err := d.t.Tx(w, r)
		d.idle <- struct{}{}
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := d.t.Tx(w, r)
		d.idle <- struct{}{}
		done <- err
	}()

	timer := time.NewTimer(d.opts.BusTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrBusTimeout
	}
}
