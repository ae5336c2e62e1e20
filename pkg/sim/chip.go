// Package sim simulates an ADS1263 with a strain-gauge bridge on AIN0/AIN1
// for running and testing the logger without hardware.
package sim

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/config"
	"github.com/itohio/gobridge/pkg/sample"
)

// DefaultID is the ID register of an ADS1263 revision 1.
const DefaultID = ads1263.DevIDADS1263<<ads1263.DevIDShift | 0x01

// externalSpan is the reference span assumed for AVDD/AVSS (5 V supply).
const externalSpan = 10.0

var (
	ErrClosed    = errors.New("simulated bus closed")
	ErrBusFault  = errors.New("simulated bus fault")
	ErrShortXfer = errors.New("transaction too short")
)

// Chip simulates the converter's SPI interface.
type Chip struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	id        byte
	regs      [ads1263.NumRegisters]byte
	running   bool
	resetFlag bool
	closed    bool
	startTime time.Time

	// Latest conversion result.
	latest int32
	fresh  bool

	// Scripted codes replace the bridge model when set.
	script   []int32
	scripted bool

	// Fault injection.
	failReads   int
	corrupt     int
	stuck       map[byte]bool
	transaction int
}

var _ ads1263.Transport = (*Chip)(nil)

// New creates a simulated chip.
func New(cfg *config.MockConfig) *Chip {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	c := &Chip{
		cfg:       cfg,
		id:        DefaultID,
		stuck:     make(map[byte]bool),
		startTime: time.Now(),
	}
	c.reset()
	return c
}

// reset loads the power-on register values.
func (c *Chip) reset() {
	c.regs = [ads1263.NumRegisters]byte{}
	c.regs[ads1263.RegID] = c.id
	c.regs[ads1263.RegPower] = 0x11
	c.regs[ads1263.RegInterface] = ads1263.InterfaceDefault
	c.regs[ads1263.RegMode1] = 0x80
	c.regs[ads1263.RegMode2] = 0x04
	c.regs[ads1263.RegInpMux] = 0x01
	c.running = false
	c.fresh = false
	c.resetFlag = true
}

// Tx implements ads1263.Transport.
func (c *Chip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(w) == 0 || len(r) < len(w) {
		return ErrShortXfer
	}
	c.transaction++

	op := w[0]
	switch {
	case op == ads1263.CmdReset:
		c.reset()
	case op == ads1263.CmdStart1:
		c.running = true
		c.fresh = false
	case op == ads1263.CmdStop1:
		c.running = false
	case op == ads1263.CmdRData1:
		return c.readData(r)
	case op&0xE0 == ads1263.CmdRReg:
		if len(w) < 3 {
			return ErrShortXfer
		}
		addr := op & 0x1F
		if int(addr) < len(c.regs) {
			r[2] = c.regs[addr]
		}
	case op&0xE0 == ads1263.CmdWReg:
		if len(w) < 3 {
			return ErrShortXfer
		}
		c.writeRegister(op&0x1F, w[2])
	}
	return nil
}

func (c *Chip) writeRegister(addr, value byte) {
	if int(addr) >= len(c.regs) || addr == ads1263.RegID || c.stuck[addr] {
		return
	}
	c.regs[addr] = value
	if addr == ads1263.RegInpMux || addr == ads1263.RegMode2 {
		// Register writes restart the conversion in progress.
		c.fresh = false
	}
}

func (c *Chip) readData(r []byte) error {
	if len(r) < 7 {
		return ErrShortXfer
	}
	if c.failReads > 0 {
		c.failReads--
		return ErrBusFault
	}

	var status byte
	if c.fresh {
		status |= ads1263.StatusADC1
	}
	if c.resetFlag {
		status |= ads1263.StatusReset
	}
	r[1] = status
	binary.BigEndian.PutUint32(r[2:6], uint32(c.latest))
	r[6] = ads1263.Checksum(r[2:6])
	if c.corrupt > 0 {
		c.corrupt--
		r[6] ^= 0xFF
	}
	c.fresh = false
	return nil
}

// Close marks the bus closed; later transactions fail.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.running = false
	return nil
}

// Script queues raw codes returned by the next conversions, in order. Once
// the script is exhausted no further conversions complete.
func (c *Chip) Script(codes ...int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, codes...)
	c.scripted = true
}

// FailReads makes the next n data reads fail with a bus fault.
func (c *Chip) FailReads(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failReads = n
}

// CorruptChecksum corrupts the checksum of the next n data reads.
func (c *Chip) CorruptChecksum(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrupt = n
}

// StickRegister makes writes to reg ignored, as if never acknowledged.
func (c *Chip) StickRegister(reg byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck[reg] = true
}

// SetID overrides the ID register, e.g. to simulate another device. The
// value survives resets.
func (c *Chip) SetID(id byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.regs[ads1263.RegID] = id
}

// Register returns the current value of reg.
func (c *Chip) Register(reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

// Running reports whether ADC1 conversions are started.
func (c *Chip) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Closed reports whether the bus was closed.
func (c *Chip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Transactions returns the number of bus transactions seen.
func (c *Chip) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transaction
}

// period returns the conversion period for the programmed data rate.
func (c *Chip) period() time.Duration {
	if c.cfg.Interval > 0 {
		return c.cfg.Interval
	}
	c.mu.Lock()
	rate := ads1263.DataRate(c.regs[ads1263.RegMode2] & ads1263.Mode2RateMask)
	c.mu.Unlock()
	sps := rate.SPS()
	if sps <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / sps)
}

// convert completes one conversion. It reports false when no conversion can
// complete: ADC1 stopped, bus closed or script exhausted.
func (c *Chip) convert(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.closed {
		return false
	}
	if c.scripted {
		if len(c.script) == 0 {
			return false
		}
		c.latest = c.script[0]
		c.script = c.script[1:]
	} else {
		c.latest = c.modelCode(now)
	}
	c.fresh = true
	c.resetFlag = false
	return true
}

// modelCode converts the bridge output to a code with the programmed gain
// and reference. Only AIN0/AIN1 carries the bridge; other inputs read noise.
func (c *Chip) modelCode(now time.Time) int32 {
	gain := ads1263.Gain((c.regs[ads1263.RegMode2] >> ads1263.Mode2GainShift) & 0x07)
	if gain > ads1263.MaxGain {
		gain = ads1263.MaxGain
	}
	span := ads1263.RefInternal.Span(ads1263.InternalReference)
	if c.regs[ads1263.RegRefMux] == ads1263.RefExternal.RefMux() {
		span = externalSpan
	}

	elapsed := now.Sub(c.startTime)
	v := c.noise(elapsed)
	if c.regs[ads1263.RegInpMux] == (ads1263.Channel{Positive: 0, Negative: 1}).Mux() {
		v += c.bridgeVoltage(elapsed)
	}
	return sample.ToCode(v, gain, span)
}

// bridgeVoltage models the loaded bridge: an offset plus a slow sinusoidal load.
func (c *Chip) bridgeVoltage(elapsed time.Duration) float64 {
	v := c.cfg.Bias
	if c.cfg.Period > 0 {
		v += c.cfg.Amplitude * math.Sin(2*math.Pi*elapsed.Seconds()/c.cfg.Period.Seconds())
	}
	return v
}

// noise is deterministic so runs are reproducible.
func (c *Chip) noise(elapsed time.Duration) float64 {
	ns := float64(elapsed.Nanoseconds())
	return (math.Sin(ns*0.001) + math.Cos(ns*0.0013)) * c.cfg.NoiseLevel * 0.5
}
