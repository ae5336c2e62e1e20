package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/config"
	"github.com/itohio/gobridge/pkg/sample"
)

func rreg(t *testing.T, c *Chip, reg byte) byte {
	t.Helper()
	r := make([]byte, 3)
	require.NoError(t, c.Tx([]byte{ads1263.CmdRReg | reg, 0, 0}, r))
	return r[2]
}

func wreg(t *testing.T, c *Chip, reg, value byte) {
	t.Helper()
	require.NoError(t, c.Tx([]byte{ads1263.CmdWReg | reg, 0, value}, make([]byte, 3)))
}

func command(t *testing.T, c *Chip, op byte) {
	t.Helper()
	require.NoError(t, c.Tx([]byte{op}, make([]byte, 1)))
}

func rdata(t *testing.T, c *Chip) []byte {
	t.Helper()
	w := make([]byte, 7)
	w[0] = ads1263.CmdRData1
	r := make([]byte, 7)
	require.NoError(t, c.Tx(w, r))
	return r
}

func TestChip_PowerOnRegisters(t *testing.T) {
	c := New(nil)

	assert.Equal(t, byte(DefaultID), rreg(t, c, ads1263.RegID))
	assert.Equal(t, byte(ads1263.DevIDADS1263), rreg(t, c, ads1263.RegID)>>ads1263.DevIDShift)
	assert.Equal(t, byte(0x01), rreg(t, c, ads1263.RegInpMux))
	assert.False(t, c.Running())
}

func TestChip_RegisterWrites(t *testing.T) {
	c := New(nil)

	wreg(t, c, ads1263.RegMode2, 0x58)
	assert.Equal(t, byte(0x58), rreg(t, c, ads1263.RegMode2))

	// ID is read-only.
	wreg(t, c, ads1263.RegID, 0x00)
	assert.Equal(t, byte(DefaultID), rreg(t, c, ads1263.RegID))

	c.StickRegister(ads1263.RegRefMux)
	wreg(t, c, ads1263.RegRefMux, 0x24)
	assert.Equal(t, byte(0x00), rreg(t, c, ads1263.RegRefMux))

	command(t, c, ads1263.CmdReset)
	assert.Equal(t, byte(0x04), rreg(t, c, ads1263.RegMode2), "reset restores defaults")
}

func TestChip_ScriptedConversions(t *testing.T) {
	c := New(nil)
	c.Script(1000000, -1)

	command(t, c, ads1263.CmdStart1)
	require.True(t, c.Running())

	require.True(t, c.convert(time.Now()))
	r := rdata(t, c)
	assert.Equal(t, byte(ads1263.StatusADC1), r[1])
	assert.Equal(t, []byte{0x00, 0x0F, 0x42, 0x40}, r[2:6])
	assert.Equal(t, ads1263.Checksum(r[2:6]), r[6])

	// Reading again without a conversion returns stale data.
	r = rdata(t, c)
	assert.Zero(t, r[1]&ads1263.StatusADC1)

	require.True(t, c.convert(time.Now()))
	r = rdata(t, c)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, r[2:6])

	assert.False(t, c.convert(time.Now()), "script exhausted")
}

func TestChip_NoConversionWhenStopped(t *testing.T) {
	c := New(nil)
	c.Script(1)
	assert.False(t, c.convert(time.Now()))

	command(t, c, ads1263.CmdStart1)
	command(t, c, ads1263.CmdStop1)
	assert.False(t, c.convert(time.Now()))
}

func TestChip_ResetFlag(t *testing.T) {
	c := New(nil)
	command(t, c, ads1263.CmdStart1)

	r := rdata(t, c)
	assert.Equal(t, byte(ads1263.StatusReset), r[1]&ads1263.StatusReset, "reset flag set until the first conversion")

	require.True(t, c.convert(time.Now()))
	r = rdata(t, c)
	assert.Zero(t, r[1]&ads1263.StatusReset)
}

func TestChip_FaultInjection(t *testing.T) {
	c := New(nil)
	c.Script(42)
	command(t, c, ads1263.CmdStart1)
	require.True(t, c.convert(time.Now()))

	c.FailReads(1)
	w := make([]byte, 7)
	w[0] = ads1263.CmdRData1
	assert.ErrorIs(t, c.Tx(w, make([]byte, 7)), ErrBusFault)

	c.CorruptChecksum(1)
	r := rdata(t, c)
	assert.NotEqual(t, ads1263.Checksum(r[2:6]), r[6])

	assert.ErrorIs(t, c.Tx(nil, nil), ErrShortXfer)
	assert.ErrorIs(t, c.Tx([]byte{ads1263.CmdRData1}, make([]byte, 1)), ErrShortXfer)
}

func TestChip_Close(t *testing.T) {
	c := New(nil)
	before := c.Transactions()
	command(t, c, ads1263.CmdStart1)
	assert.Equal(t, before+1, c.Transactions())

	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.False(t, c.Running())
	assert.ErrorIs(t, c.Tx([]byte{ads1263.CmdNOP}, make([]byte, 1)), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestChip_Period(t *testing.T) {
	c := New(&config.MockConfig{})
	wreg(t, c, ads1263.RegMode2, byte(ads1263.Rate400))
	assert.Equal(t, 2500*time.Microsecond, c.period())

	wreg(t, c, ads1263.RegMode2, byte(ads1263.Rate2p5))
	assert.Equal(t, 400*time.Millisecond, c.period())

	c = New(&config.MockConfig{Interval: 3 * time.Millisecond})
	assert.Equal(t, 3*time.Millisecond, c.period())
}

func TestChip_BridgeModel(t *testing.T) {
	cfg := &config.MockConfig{Bias: 0.002}
	c := New(cfg)
	wreg(t, c, ads1263.RegMode2, byte(ads1263.Gain32)<<ads1263.Mode2GainShift|byte(ads1263.Rate400))
	command(t, c, ads1263.CmdStart1)
	require.True(t, c.convert(time.Now()))

	r := rdata(t, c)
	raw := int32(uint32(r[2])<<24 | uint32(r[3])<<16 | uint32(r[4])<<8 | uint32(r[5]))
	v := sample.ToVoltage(raw, ads1263.Gain32, 5.0)
	assert.InDelta(t, 0.002, v, 1e-6)

	// Another input pair only sees noise, which is zero here.
	wreg(t, c, ads1263.RegInpMux, 0x23)
	require.True(t, c.convert(time.Now()))
	r = rdata(t, c)
	assert.Equal(t, []byte{0, 0, 0, 0}, r[2:6])
}

func TestChip_BridgeModelSaturates(t *testing.T) {
	c := New(&config.MockConfig{Bias: 1.0})
	wreg(t, c, ads1263.RegMode2, byte(ads1263.Gain32)<<ads1263.Mode2GainShift)
	command(t, c, ads1263.CmdStart1)
	require.True(t, c.convert(time.Now()))

	r := rdata(t, c)
	assert.Equal(t, []byte{0x7F, 0xFF, 0xFF, 0xFF}, r[2:6])
}
