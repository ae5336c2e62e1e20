package sample

import (
	"math"
	"time"

	"github.com/itohio/gobridge/pkg/ads1263"
)

// FullScaleCode is the largest magnitude of a 32-bit two's complement code.
const FullScaleCode = math.MaxInt32

// Sample is one persisted measurement.
type Sample struct {
	Timestamp time.Time
	Voltage   float64 // Bridge differential voltage (V)
}

// Scale converts raw codes to volts for fixed converter settings.
type Scale struct {
	Gain      ads1263.Gain
	Reference float64 // Reference span in volts (twice the nominal reference)
}

// NewScale builds the scale for a converter configuration and nominal reference voltage.
func NewScale(cfg ads1263.Config, nominalRef float64) Scale {
	return Scale{
		Gain:      cfg.Gain,
		Reference: cfg.Reference.Span(nominalRef),
	}
}

// Volts converts raw to volts.
func (s Scale) Volts(raw int32) float64 {
	return ToVoltage(raw, s.Gain, s.Reference)
}

// FullScale returns the magnitude of the largest measurable voltage.
func (s Scale) FullScale() float64 {
	return s.Reference / s.Gain.Multiplier()
}

// ToVoltage converts a raw code: raw / FullScaleCode * vref / gain.
// The most negative code saturates at negative full scale.
func ToVoltage(raw int32, gain ads1263.Gain, vref float64) float64 {
	code := int64(raw)
	if code < -FullScaleCode {
		code = -FullScaleCode
	}
	return float64(code) / FullScaleCode * (vref / gain.Multiplier())
}

// ToCode is the inverse of ToVoltage, rounding to the nearest code and
// clamping to +-FullScaleCode.
func ToCode(volts float64, gain ads1263.Gain, vref float64) int32 {
	code := math.Round(volts / (vref / gain.Multiplier()) * FullScaleCode)
	if code > FullScaleCode {
		return FullScaleCode
	}
	if code < -FullScaleCode {
		return -FullScaleCode
	}
	return int32(code)
}
