package ads1263

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataRate(t *testing.T) {
	tests := []struct {
		in      string
		want    DataRate
		wantErr bool
	}{
		{"2.5", Rate2p5, false},
		{"16.6", Rate16p6, false},
		{"400", Rate400, false},
		{"400sps", Rate400, false},
		{" 38400 ", Rate38400, false},
		{"401", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataRate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParseRate(t, got.String()))
		})
	}
}

func mustParseRate(t *testing.T, s string) DataRate {
	t.Helper()
	r, err := ParseDataRate(s)
	require.NoError(t, err)
	return r
}

func TestParseGain(t *testing.T) {
	for g := Gain1; g <= MaxGain; g++ {
		got, err := ParseGain(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}
	got, err := ParseGain("x32")
	require.NoError(t, err)
	assert.Equal(t, Gain32, got)
	assert.Equal(t, float64(32), got.Multiplier())

	for _, bad := range []string{"0", "3", "64", "128", "big"} {
		_, err := ParseGain(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseEnums(t *testing.T) {
	ref, err := ParseReference("Internal")
	require.NoError(t, err)
	assert.Equal(t, RefInternal, ref)
	ref, err = ParseReference("external")
	require.NoError(t, err)
	assert.Equal(t, RefExternal, ref)
	_, err = ParseReference("ain0")
	assert.Error(t, err)

	chop, err := ParseChop("on")
	require.NoError(t, err)
	assert.Equal(t, ChopOn, chop)
	_, err = ParseChop("maybe")
	assert.Error(t, err)

	mode, err := ParseInputMode("single-ended")
	require.NoError(t, err)
	assert.Equal(t, SingleEnded, mode)
	_, err = ParseInputMode("pseudo")
	assert.Error(t, err)

	flt, err := ParseFilter("FIR")
	require.NoError(t, err)
	assert.Equal(t, FilterFIR, flt)
	_, err = ParseFilter("sinc5")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{"default", DefaultConfig(), ""},
		{"fir at 20 sps", Config{Rate: Rate20, Gain: Gain32, Filter: FilterFIR}, ""},
		{"fir at 2.5 sps", Config{Rate: Rate2p5, Gain: Gain1, Filter: FilterFIR}, ""},
		{"fir at 400 sps", Config{Rate: Rate400, Gain: Gain32, Filter: FilterFIR}, "filter"},
		{"unknown rate", Config{Rate: 16}, "rate"},
		{"gain 64", Config{Gain: 6}, "gain"},
		{"unknown reference", Config{Reference: 5}, "reference"},
		{"unknown chop", Config{Chop: 3}, "chop"},
		{"unknown mode", Config{Mode: 2}, "mode"},
		{"unknown filter", Config{Filter: 5}, "filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantField, ce.Field)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestConfig_Registers(t *testing.T) {
	mode0, mode1, mode2, refmux := DefaultConfig().Registers()
	assert.Equal(t, byte(0x00), mode0)
	assert.Equal(t, byte(0x60), mode1, "sinc4")
	assert.Equal(t, byte(0x58), mode2, "gain 32, 400 SPS, PGA enabled")
	assert.Equal(t, byte(0x00), refmux)

	mode0, mode1, mode2, refmux = Config{Rate: Rate20, Gain: Gain1, Reference: RefExternal, Chop: ChopOn, Filter: FilterFIR}.Registers()
	assert.Equal(t, byte(0x10), mode0)
	assert.Equal(t, byte(0x80), mode1)
	assert.Equal(t, byte(0x04), mode2)
	assert.Equal(t, byte(0x24), refmux)
}

func TestChannel(t *testing.T) {
	ch := DefaultChannel()
	assert.Equal(t, byte(0x01), ch.Mux())
	assert.NoError(t, ch.Validate(Differential))
	assert.Equal(t, "AIN0+/AIN1-", ch.String())

	ch, err := DifferentialChannel(2)
	require.NoError(t, err)
	assert.Equal(t, Channel{Positive: 4, Negative: 5}, ch)
	_, err = DifferentialChannel(5)
	assert.Error(t, err)

	se, err := SingleEndedChannel(3)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3A), se.Mux())
	assert.NoError(t, se.Validate(SingleEnded))
	assert.Error(t, se.Validate(Differential))
	assert.Equal(t, "AIN3+/AINCOM-", se.String())

	assert.Error(t, Channel{Positive: 10, Negative: 1}.Validate(Differential))
	assert.Error(t, Channel{Positive: 1, Negative: 1}.Validate(Differential))
	assert.Error(t, DefaultChannel().Validate(SingleEnded))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x9B), Checksum([]byte{0, 0, 0, 0}))
	assert.Equal(t, byte(0x9B+0x01+0x02+0x03+0x04), Checksum([]byte{1, 2, 3, 4}))
	assert.Equal(t, byte((0x9B+0xFF*4)&0xFF), Checksum([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
}

func TestRegisterName(t *testing.T) {
	assert.Equal(t, "ID", RegisterName(RegID))
	assert.Equal(t, "MODE2", RegisterName(RegMode2))
	assert.Equal(t, "REFMUX", RegisterName(RegRefMux))
	assert.Equal(t, "ADC2FSC1", RegisterName(RegADC2FsC1))
	assert.Equal(t, "?", RegisterName(NumRegisters))
}
