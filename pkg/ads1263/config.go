package ads1263

import (
	"fmt"
	"strconv"
	"strings"
)

// DataRate is the ADC1 output data rate. The value is the MODE2 DR code.
type DataRate uint8

const (
	Rate2p5 DataRate = iota
	Rate5
	Rate10
	Rate16p6
	Rate20
	Rate50
	Rate60
	Rate100
	Rate400
	Rate1200
	Rate2400
	Rate4800
	Rate7200
	Rate14400
	Rate19200
	Rate38400
)

var rateSPS = [...]float64{2.5, 5, 10, 16.6, 20, 50, 60, 100, 400, 1200, 2400, 4800, 7200, 14400, 19200, 38400}

// SPS returns the nominal samples per second.
func (r DataRate) SPS() float64 {
	if int(r) >= len(rateSPS) {
		return 0
	}
	return rateSPS[r]
}

func (r DataRate) String() string {
	if int(r) >= len(rateSPS) {
		return fmt.Sprintf("DataRate(%d)", uint8(r))
	}
	return strconv.FormatFloat(rateSPS[r], 'f', -1, 64)
}

// ParseDataRate accepts the samples-per-second figure, e.g. "400" or "2.5".
func ParseDataRate(s string) (DataRate, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "sps")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid data rate %q: %w", s, err)
	}
	for i, sps := range rateSPS {
		if sps == v {
			return DataRate(i), nil
		}
	}
	return 0, fmt.Errorf("invalid data rate %q: %w", s, ErrUnsupported)
}

func (r DataRate) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *DataRate) UnmarshalText(b []byte) error {
	v, err := ParseDataRate(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Gain is the PGA gain. The value is the MODE2 GAIN code; the multiplier is 1<<code.
type Gain uint8

const (
	Gain1 Gain = iota
	Gain2
	Gain4
	Gain8
	Gain16
	Gain32
)

// MaxGain is the largest PGA setting.
const MaxGain = Gain32

// Multiplier returns the gain as a number.
func (g Gain) Multiplier() float64 {
	return float64(uint32(1) << g)
}

func (g Gain) String() string {
	if g > MaxGain {
		return fmt.Sprintf("Gain(%d)", uint8(g))
	}
	return strconv.Itoa(1 << g)
}

// ParseGain accepts the multiplier, e.g. "32" or "x32".
func ParseGain(s string) (Gain, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "x")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid gain %q: %w", s, err)
	}
	for g := Gain1; g <= MaxGain; g++ {
		if 1<<g == v {
			return g, nil
		}
	}
	return 0, fmt.Errorf("invalid gain %q: %w", s, ErrUnsupported)
}

func (g Gain) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *Gain) UnmarshalText(b []byte) error {
	v, err := ParseGain(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// Reference selects the ADC1 voltage reference.
type Reference uint8

const (
	RefInternal Reference = iota // 2.5 V internal reference
	RefExternal                  // AVDD/AVSS supply pins
)

// InternalReference is the nominal internal reference voltage.
const InternalReference = 2.5

// RefMux returns the REFMUX register value.
func (r Reference) RefMux() byte {
	if r == RefExternal {
		return 0x24
	}
	return 0x00
}

// Span returns the bipolar reference span used to scale codes: twice the
// nominal reference voltage.
func (r Reference) Span(nominal float64) float64 {
	return 2 * nominal
}

func (r Reference) String() string {
	switch r {
	case RefInternal:
		return "internal"
	case RefExternal:
		return "external"
	}
	return fmt.Sprintf("Reference(%d)", uint8(r))
}

func ParseReference(s string) (Reference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal", "int":
		return RefInternal, nil
	case "external", "ext", "avdd":
		return RefExternal, nil
	}
	return 0, fmt.Errorf("invalid reference %q: %w", s, ErrUnsupported)
}

func (r Reference) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Reference) UnmarshalText(b []byte) error {
	v, err := ParseReference(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Chop enables input chopping.
type Chop uint8

const (
	ChopOff Chop = iota
	ChopOn
)

func (c Chop) String() string {
	switch c {
	case ChopOff:
		return "off"
	case ChopOn:
		return "on"
	}
	return fmt.Sprintf("Chop(%d)", uint8(c))
}

func ParseChop(s string) (Chop, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "false", "0":
		return ChopOff, nil
	case "on", "true", "1":
		return ChopOn, nil
	}
	return 0, fmt.Errorf("invalid chop mode %q: %w", s, ErrUnsupported)
}

func (c Chop) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Chop) UnmarshalText(b []byte) error {
	v, err := ParseChop(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// InputMode selects differential or single-ended measurement.
type InputMode uint8

const (
	Differential InputMode = iota
	SingleEnded
)

func (m InputMode) String() string {
	switch m {
	case Differential:
		return "differential"
	case SingleEnded:
		return "single-ended"
	}
	return fmt.Sprintf("InputMode(%d)", uint8(m))
}

func ParseInputMode(s string) (InputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "differential", "diff":
		return Differential, nil
	case "single-ended", "single", "se":
		return SingleEnded, nil
	}
	return 0, fmt.Errorf("invalid input mode %q: %w", s, ErrUnsupported)
}

func (m InputMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *InputMode) UnmarshalText(b []byte) error {
	v, err := ParseInputMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Filter is the ADC1 digital filter. The value is the MODE1 FILTER code.
type Filter uint8

const (
	FilterSinc1 Filter = iota
	FilterSinc2
	FilterSinc3
	FilterSinc4
	FilterFIR
)

var filterNames = [...]string{"sinc1", "sinc2", "sinc3", "sinc4", "fir"}

func (f Filter) String() string {
	if int(f) >= len(filterNames) {
		return fmt.Sprintf("Filter(%d)", uint8(f))
	}
	return filterNames[f]
}

func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range filterNames {
		if name == s {
			return Filter(i), nil
		}
	}
	return 0, fmt.Errorf("invalid filter %q: %w", s, ErrUnsupported)
}

func (f Filter) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Filter) UnmarshalText(b []byte) error {
	v, err := ParseFilter(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Config holds the ADC1 settings applied by Device.Configure.
type Config struct {
	Rate      DataRate  `yaml:"rate" json:"rate"`
	Gain      Gain      `yaml:"gain" json:"gain"`
	Reference Reference `yaml:"reference" json:"reference"`
	Chop      Chop      `yaml:"chop" json:"chop"`
	Mode      InputMode `yaml:"mode" json:"mode"`
	Filter    Filter    `yaml:"filter" json:"filter"`
}

// DefaultConfig is 400 SPS, gain 32, internal reference, chop off,
// differential input and the sinc4 filter.
func DefaultConfig() Config {
	return Config{
		Rate:      Rate400,
		Gain:      Gain32,
		Reference: RefInternal,
		Chop:      ChopOff,
		Mode:      Differential,
		Filter:    FilterSinc4,
	}
}

// Validate checks that every field holds a known value and that the
// combination is supported by the device.
func (c Config) Validate() error {
	if int(c.Rate) >= len(rateSPS) {
		return &ConfigError{Field: "rate", Err: ErrUnsupported}
	}
	if c.Gain > MaxGain {
		return &ConfigError{Field: "gain", Err: ErrUnsupported}
	}
	if c.Reference > RefExternal {
		return &ConfigError{Field: "reference", Err: ErrUnsupported}
	}
	if c.Chop > ChopOn {
		return &ConfigError{Field: "chop", Err: ErrUnsupported}
	}
	if c.Mode > SingleEnded {
		return &ConfigError{Field: "mode", Err: ErrUnsupported}
	}
	if int(c.Filter) >= len(filterNames) {
		return &ConfigError{Field: "filter", Err: ErrUnsupported}
	}
	// The FIR filter only settles at the low data rates.
	if c.Filter == FilterFIR && c.Rate > Rate20 {
		return &ConfigError{
			Field: "filter",
			Err:   fmt.Errorf("%w: fir filter requires a data rate of 20 SPS or less, got %s", ErrUnsupported, c.Rate),
		}
	}
	return nil
}

// Registers returns the MODE0, MODE1, MODE2 and REFMUX values for c.
func (c Config) Registers() (mode0, mode1, mode2, refmux byte) {
	mode0 = byte(c.Chop) << Mode0ChopShift
	mode1 = byte(c.Filter) << Mode1FilterShift
	mode2 = byte(c.Gain)<<Mode2GainShift | byte(c.Rate)&Mode2RateMask
	refmux = c.Reference.RefMux()
	return mode0, mode1, mode2, refmux
}

func (c Config) String() string {
	return fmt.Sprintf("rate=%s SPS gain=%s ref=%s chop=%s mode=%s filter=%s",
		c.Rate, c.Gain, c.Reference, c.Chop, c.Mode, c.Filter)
}

// Channel selects the input pair: Positive and Negative are AIN indices
// (0..9) or AINCOM.
type Channel struct {
	Positive uint8 `yaml:"positive"`
	Negative uint8 `yaml:"negative"`
}

// DefaultChannel is IN0+/IN1-.
func DefaultChannel() Channel {
	return Channel{Positive: 0, Negative: 1}
}

// DifferentialChannel returns the n-th adjacent pair: 0 is AIN0/AIN1, 1 is AIN2/AIN3, ...
func DifferentialChannel(n int) (Channel, error) {
	if n < 0 || n > 4 {
		return Channel{}, fmt.Errorf("invalid differential channel %d: %w", n, ErrUnsupported)
	}
	return Channel{Positive: uint8(2 * n), Negative: uint8(2*n + 1)}, nil
}

// SingleEndedChannel returns AINn against AINCOM.
func SingleEndedChannel(n int) (Channel, error) {
	if n < 0 || n > 9 {
		return Channel{}, fmt.Errorf("invalid single-ended channel %d: %w", n, ErrUnsupported)
	}
	return Channel{Positive: uint8(n), Negative: AINCOM}, nil
}

// Mux returns the INPMUX register value.
func (ch Channel) Mux() byte {
	return ch.Positive<<4 | ch.Negative&0x0F
}

// Validate checks the pair against the input mode.
func (ch Channel) Validate(mode InputMode) error {
	if ch.Positive > 9 {
		return &ConfigError{Field: "channel", Err: fmt.Errorf("%w: positive input %d", ErrUnsupported, ch.Positive)}
	}
	if ch.Positive == ch.Negative {
		return &ConfigError{Field: "channel", Err: fmt.Errorf("%w: inputs must differ", ErrUnsupported)}
	}
	switch mode {
	case SingleEnded:
		if ch.Negative != AINCOM {
			return &ConfigError{Field: "channel", Err: fmt.Errorf("%w: single-ended requires AINCOM as negative input", ErrUnsupported)}
		}
	default:
		if ch.Negative > 9 {
			return &ConfigError{Field: "channel", Err: fmt.Errorf("%w: negative input %d", ErrUnsupported, ch.Negative)}
		}
	}
	return nil
}

func (ch Channel) String() string {
	neg := "AIN" + strconv.Itoa(int(ch.Negative))
	if ch.Negative == AINCOM {
		neg = "AINCOM"
	}
	return fmt.Sprintf("AIN%d+/%s-", ch.Positive, neg)
}
