package main

import (
	"fmt"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/config"
	"github.com/itohio/gobridge/pkg/ready"
	"github.com/itohio/gobridge/pkg/session"
	"github.com/itohio/gobridge/pkg/sim"
	"github.com/itohio/gobridge/pkg/sink"
)

func deviceOptions(cfg *config.Config) ads1263.Options {
	return ads1263.Options{
		BusTimeout: cfg.Bus.Timeout,
		ResetDelay: cfg.Bus.ResetDelay,
	}
}

// openBus opens the converter's SPI port.
func openBus(cfg *config.Config) (*ads1263.SPIPort, error) {
	return ads1263.OpenSPI(ads1263.SPIOptions{
		Port:       cfg.Bus.Port,
		SpeedHz:    cfg.Bus.SpeedHz,
		ChipSelect: cfg.Bus.ChipSelect,
		ResetPin:   cfg.Bus.ResetPin,
	})
}

// openReady opens the data-ready line with the configured driver.
func openReady(cfg config.ReadyConfig) (ready.Source, error) {
	switch cfg.Driver {
	case config.DriverGPIOCDev:
		src, err := ready.OpenGPIOCDev(ready.GPIOCDevOptions{
			Chip:     cfg.Chip,
			Line:     cfg.Line,
			Debounce: cfg.Debounce,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.DriverPeriph:
		src, err := ready.OpenPeriphPin(cfg.Pin, ready.DefaultQuantum)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.DriverPoll:
		src, err := ready.OpenPoll(cfg.Pin, cfg.PollInterval, cfg.Stable)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown ready driver %q", cfg.Driver)
}

func sinkOptions(cfg *config.Config) sink.Options {
	conv := cfg.Converter
	return sink.Options{
		SyncEvery: cfg.Output.SyncEvery,
		Meta: map[string]string{
			"rate":              conv.Rate.String(),
			"gain":              conv.Gain.String(),
			"reference":         conv.Reference.String(),
			"reference_voltage": fmt.Sprint(conv.ReferenceVoltage),
			"chop":              conv.Chop.String(),
			"mode":              conv.Mode.String(),
			"filter":            conv.Filter.String(),
			"channel":           conv.Channel.String(),
		},
	}
}

// newDeps wires either the hardware or the simulator into a session.
func newDeps(cfg *config.Config, mock bool) session.Deps {
	deps := session.Deps{
		Sink: func() (sink.Sink, error) {
			return sink.Open(cfg.Output.Format, cfg.Output.Path, sinkOptions(cfg))
		},
	}
	if mock {
		chip := sim.New(&cfg.Mock)
		deps.Ready = func() (ready.Source, error) { return chip.Ready(), nil }
		deps.Converter = func() (session.Converter, error) {
			return ads1263.New(chip, deviceOptions(cfg)), nil
		}
		return deps
	}

	deps.Ready = func() (ready.Source, error) { return openReady(cfg.Ready) }
	deps.Converter = func() (session.Converter, error) {
		bus, err := openBus(cfg)
		if err != nil {
			return nil, err
		}
		return ads1263.New(bus, deviceOptions(cfg)), nil
	}
	return deps
}

func settingsFromConfig(cfg *config.Config) session.Settings {
	return session.Settings{
		Converter:        cfg.Converter.Config,
		Channel:          cfg.Converter.Channel,
		ReferenceVoltage: cfg.Converter.ReferenceVoltage,
		ReadyTimeout:     cfg.Ready.Timeout,
		DegradedAfter:    cfg.Loop.DegradedAfter,
		MaxSamples:       cfg.Loop.MaxSamples,
	}
}
