package sample

import (
	"math"
	"testing"
	"time"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const internalSpan = 2 * ads1263.InternalReference

func TestToVoltage(t *testing.T) {
	tests := []struct {
		name string
		raw  int32
		gain ads1263.Gain
		vref float64
		want float64
	}{
		{"zero", 0, ads1263.Gain32, internalSpan, 0.0},
		{"positive full scale", math.MaxInt32, ads1263.Gain32, internalSpan, 0.15625},
		{"most negative code saturates", math.MinInt32, ads1263.Gain32, internalSpan, -0.15625},
		{"negative full scale", -math.MaxInt32, ads1263.Gain32, internalSpan, -0.15625},
		{"gain 1 full scale", math.MaxInt32, ads1263.Gain1, internalSpan, 5.0},
		{"gain 1 most negative", math.MinInt32, ads1263.Gain1, internalSpan, -5.0},
		{"one million at gain 32", 1_000_000, ads1263.Gain32, internalSpan, 1e6 / math.MaxInt32 * 0.15625},
		{"half scale gain 4", math.MaxInt32 / 2, ads1263.Gain4, internalSpan, 0.625},
		{"external span", math.MaxInt32, ads1263.Gain2, 10.0, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToVoltage(tt.raw, tt.gain, tt.vref)
			assert.InDelta(t, tt.want, got, 1e-9, "ToVoltage(%d, %s, %f)", tt.raw, tt.gain, tt.vref)
		})
	}
}

func TestToVoltage_Monotonic(t *testing.T) {
	codes := []int32{math.MinInt32 + 1, -1_000_000_000, -1_000_000, -1, 0, 1, 1_000_000, 1_000_000_000, math.MaxInt32}
	for g := ads1263.Gain1; g <= ads1263.MaxGain; g++ {
		prev := ToVoltage(codes[0], g, internalSpan)
		for _, c := range codes[1:] {
			v := ToVoltage(c, g, internalSpan)
			assert.Greater(t, v, prev, "gain %s code %d", g, c)
			prev = v
		}
	}
}

func TestToVoltage_AdjacentCodesDistinct(t *testing.T) {
	// One LSB at gain 32 is ~73 pV; float64 must still separate neighbours.
	for _, c := range []int32{-2, 0, 1 << 20, math.MaxInt32 - 1} {
		assert.Less(t, ToVoltage(c, ads1263.Gain32, internalSpan), ToVoltage(c+1, ads1263.Gain32, internalSpan))
	}
}

func TestToCode_RoundTrip(t *testing.T) {
	for _, c := range []int32{0, 1, -1, 1_000_000, -1_000_000, math.MaxInt32, -math.MaxInt32} {
		v := ToVoltage(c, ads1263.Gain32, internalSpan)
		assert.Equal(t, c, ToCode(v, ads1263.Gain32, internalSpan))
	}
}

func TestToCode_Clamps(t *testing.T) {
	assert.Equal(t, int32(math.MaxInt32), ToCode(1.0, ads1263.Gain32, internalSpan))
	assert.Equal(t, int32(-math.MaxInt32), ToCode(-1.0, ads1263.Gain32, internalSpan))
}

func TestScale(t *testing.T) {
	cfg := ads1263.DefaultConfig()
	s := NewScale(cfg, ads1263.InternalReference)
	assert.Equal(t, ads1263.Gain32, s.Gain)
	assert.Equal(t, 5.0, s.Reference)
	assert.InDelta(t, 0.15625, s.FullScale(), 1e-12)
	assert.InDelta(t, 0.15625, s.Volts(math.MaxInt32), 1e-12)
}

func TestWindow_TrimsByTimestamp(t *testing.T) {
	w := NewWindow(time.Second)
	start := time.Now()
	for i := 0; i < 30; i++ {
		w.Add(Sample{Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond), Voltage: float64(i)})
	}

	all := w.Snapshot(nil, 0)
	require.NotEmpty(t, all)
	latest, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, float64(29), latest.Voltage)
	assert.Equal(t, latest, all[len(all)-1])
	for _, s := range all {
		assert.True(t, s.Timestamp.After(latest.Timestamp.Add(-time.Second)))
	}
	assert.Equal(t, 10, w.Len())
}

func TestWindow_Snapshot_Decimates(t *testing.T) {
	w := NewWindow(time.Hour)
	for _, s := range ramp(100, time.Now()) {
		w.Add(s)
	}
	snap := w.Snapshot(nil, 10)
	assert.Len(t, snap, 10)
	assert.Equal(t, 100, w.Len())
}

func TestWindow_Empty(t *testing.T) {
	w := NewWindow(0)
	_, ok := w.Latest()
	assert.False(t, ok)
	assert.Empty(t, w.Snapshot(nil, 5))
}
