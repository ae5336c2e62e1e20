package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/gobridge/pkg/ads1263"
)

// Ready signal drivers.
const (
	DriverGPIOCDev = "gpiocdev"
	DriverPeriph   = "periph"
	DriverPoll     = "poll"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatBolt = "bolt"
)

// Config represents the application configuration.
type Config struct {
	Converter ConverterConfig `yaml:"converter"`
	Bus       BusConfig       `yaml:"bus"`
	Ready     ReadyConfig     `yaml:"ready"`
	Output    OutputConfig    `yaml:"output"`
	Loop      LoopConfig      `yaml:"loop"`
	Status    StatusConfig    `yaml:"status"`
	Log       LogConfig       `yaml:"log"`
	Mock      MockConfig      `yaml:"mock"`
}

// ConverterConfig contains the ADC settings and the measured input pair.
type ConverterConfig struct {
	ads1263.Config `yaml:",inline"`
	// ReferenceVoltage is the nominal reference in volts. Codes are scaled by twice this value.
	ReferenceVoltage float64         `yaml:"reference_voltage"`
	Channel          ads1263.Channel `yaml:"channel"`
}

// BusConfig contains the SPI bus configuration.
type BusConfig struct {
	Port       string        `yaml:"port"`        // periph SPI port, e.g. "SPI0.0"
	SpeedHz    int64         `yaml:"speed_hz"`    // SCLK frequency
	ChipSelect string        `yaml:"chip_select"` // GPIO used as chip select, empty for hardware CS
	ResetPin   string        `yaml:"reset_pin"`   // GPIO wired to RESET/PWDN, optional
	Timeout    time.Duration `yaml:"timeout"`     // Bound for a single bus transaction
	ResetDelay time.Duration `yaml:"reset_delay"` // Settle time after RESET
}

// ReadyConfig contains the data-ready line configuration.
type ReadyConfig struct {
	Driver       string        `yaml:"driver"`        // gpiocdev, periph or poll
	Chip         string        `yaml:"chip"`          // gpiocdev chip, e.g. "gpiochip0"
	Line         int           `yaml:"line"`          // gpiocdev line offset (BCM number)
	Pin          string        `yaml:"pin"`           // periph pin name, e.g. "GPIO17"
	Debounce     time.Duration `yaml:"debounce"`      // Kernel debounce period, 0 disables
	Timeout      time.Duration `yaml:"timeout"`       // Wait bound before a timeout is reported
	PollInterval time.Duration `yaml:"poll_interval"` // Level polling interval for the poll driver
	Stable       int           `yaml:"stable"`        // Consecutive equal reads accepted as a level
}

// OutputConfig contains the sample store configuration.
type OutputConfig struct {
	Format    string `yaml:"format"`     // csv or bolt
	Path      string `yaml:"path"`       // Output file, truncated at start
	SyncEvery int    `yaml:"sync_every"` // fsync every N records (csv), 0 only on close
}

// LoopConfig contains acquisition loop parameters.
type LoopConfig struct {
	DegradedAfter int `yaml:"degraded_after"` // Consecutive failures before health is degraded
	MaxSamples    int `yaml:"max_samples"`    // Stop after N samples, 0 runs until interrupted
}

// StatusConfig contains the optional status server configuration.
type StatusConfig struct {
	Addr   string        `yaml:"addr"`   // Listen address, empty disables the server
	Window time.Duration `yaml:"window"` // Span of recent samples kept for /samples
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MockConfig contains simulated bridge configuration.
type MockConfig struct {
	Bias       float64       `yaml:"bias"`        // Bridge offset (V)
	Amplitude  float64       `yaml:"amplitude"`   // Load swing amplitude (V)
	Period     time.Duration `yaml:"period"`      // Load cycle period
	NoiseLevel float64       `yaml:"noise_level"` // Noise level (V)
	Interval   time.Duration `yaml:"interval"`    // Overrides the data rate period when > 0
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Converter: ConverterConfig{
			Config:           ads1263.DefaultConfig(),
			ReferenceVoltage: ads1263.InternalReference,
			Channel:          ads1263.DefaultChannel(),
		},
		Bus: BusConfig{
			Port:       "",
			SpeedHz:    ads1263.DefaultSpeedHz,
			ChipSelect: "GPIO22",
			ResetPin:   "GPIO18",
			Timeout:    ads1263.DefaultBusTimeout,
			ResetDelay: ads1263.DefaultResetDelay,
		},
		Ready: ReadyConfig{
			Driver:       DriverGPIOCDev,
			Chip:         "gpiochip0",
			Line:         17,
			Pin:          "GPIO17",
			Debounce:     0,
			Timeout:      time.Second,
			PollInterval: 100 * time.Microsecond,
			Stable:       1,
		},
		Output: OutputConfig{
			Format:    FormatCSV,
			Path:      "measurements.csv",
			SyncEvery: 0,
		},
		Loop: LoopConfig{
			DegradedAfter: 10,
			MaxSamples:    0,
		},
		Status: StatusConfig{
			Addr:   "",
			Window: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Bias:       0.002,
			Amplitude:  0.01,
			Period:     5 * time.Second,
			NoiseLevel: 0.00001,
			Interval:   0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks settings that cannot be repaired with defaults.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Converter.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Converter.Channel.Validate(c.Converter.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Converter.ReferenceVoltage <= 0 {
		errs = append(errs, fmt.Errorf("converter.reference_voltage must be positive, got %v", c.Converter.ReferenceVoltage))
	}
	switch c.Ready.Driver {
	case DriverGPIOCDev, DriverPeriph, DriverPoll:
	default:
		errs = append(errs, fmt.Errorf("ready.driver must be one of %s, %s, %s, got %q", DriverGPIOCDev, DriverPeriph, DriverPoll, c.Ready.Driver))
	}
	switch c.Output.Format {
	case FormatCSV, FormatBolt:
	default:
		errs = append(errs, fmt.Errorf("output.format must be %s or %s, got %q", FormatCSV, FormatBolt, c.Output.Format))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if c.Loop.MaxSamples < 0 {
		errs = append(errs, fmt.Errorf("loop.max_samples must not be negative, got %d", c.Loop.MaxSamples))
	}
	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Converter.ReferenceVoltage == 0 {
		c.Converter.ReferenceVoltage = def.Converter.ReferenceVoltage
	}

	if c.Bus.SpeedHz == 0 {
		c.Bus.SpeedHz = def.Bus.SpeedHz
	}
	if c.Bus.Timeout == 0 {
		c.Bus.Timeout = def.Bus.Timeout
	}
	if c.Bus.ResetDelay == 0 {
		c.Bus.ResetDelay = def.Bus.ResetDelay
	}

	c.Ready.Driver = strings.ToLower(c.Ready.Driver)
	if c.Ready.Driver == "" {
		c.Ready.Driver = def.Ready.Driver
	}
	if c.Ready.Chip == "" {
		c.Ready.Chip = def.Ready.Chip
	}
	if c.Ready.Pin == "" {
		c.Ready.Pin = def.Ready.Pin
	}
	if c.Ready.Timeout == 0 {
		c.Ready.Timeout = def.Ready.Timeout
	}
	if c.Ready.PollInterval == 0 {
		c.Ready.PollInterval = def.Ready.PollInterval
	}
	if c.Ready.Stable == 0 {
		c.Ready.Stable = def.Ready.Stable
	}

	c.Output.Format = strings.ToLower(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}
	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}

	if c.Loop.DegradedAfter == 0 {
		c.Loop.DegradedAfter = def.Loop.DegradedAfter
	}

	if c.Status.Window == 0 {
		c.Status.Window = def.Status.Window
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
