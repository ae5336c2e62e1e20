package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/config"
	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/sample"
	"github.com/itohio/gobridge/pkg/session"
	"github.com/itohio/gobridge/pkg/status"
)

// runOptions override configuration file values when their flag is set.
type runOptions struct {
	mock       bool
	out        string
	format     string
	rate       string
	gain       string
	reference  string
	chop       string
	mode       string
	filter     string
	positive   uint8
	negative   uint8
	maxSamples int
	statusAddr string
	driver     string
	port       string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire samples until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if err := opts.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAcquisition(ctx, cmd.OutOrStdout(), cfg, opts.mock)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.mock, "mock", false, "Use the simulated converter instead of the hardware")
	flags.StringVarP(&opts.out, "out", "o", "", "Output file (overrides output.path)")
	flags.StringVar(&opts.format, "format", "", "Output format: csv or bolt")
	flags.StringVar(&opts.rate, "rate", "", "Data rate in SPS, e.g. 400")
	flags.StringVar(&opts.gain, "gain", "", "PGA gain: 1, 2, 4, 8, 16 or 32")
	flags.StringVar(&opts.reference, "reference", "", "Reference: internal or external")
	flags.StringVar(&opts.chop, "chop", "", "Chop mode: on or off")
	flags.StringVar(&opts.mode, "mode", "", "Input mode: differential or single-ended")
	flags.StringVar(&opts.filter, "filter", "", "Digital filter: sinc1..sinc4 or fir (fir only at 20 SPS or less)")
	flags.Uint8Var(&opts.positive, "positive", 0, "Positive input (AIN index)")
	flags.Uint8Var(&opts.negative, "negative", 1, "Negative input (AIN index, 10 for AINCOM)")
	flags.IntVarP(&opts.maxSamples, "max-samples", "n", 0, "Stop after N samples (0 runs until interrupted)")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "Serve /status and /samples on this address")
	flags.StringVar(&opts.driver, "ready-driver", "", "Data ready driver: gpiocdev, periph or poll")
	flags.StringVarP(&opts.port, "port", "p", "", "SPI port override (e.g. SPI0.0)")
	return cmd
}

func (o *runOptions) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	conv := &cfg.Converter
	parse := func(name string, fn func() error) {
		if err == nil && flags.Changed(name) {
			if perr := fn(); perr != nil {
				err = fmt.Errorf("--%s: %w", name, perr)
			}
		}
	}
	parse("rate", func() (e error) { conv.Rate, e = ads1263.ParseDataRate(o.rate); return })
	parse("gain", func() (e error) { conv.Gain, e = ads1263.ParseGain(o.gain); return })
	parse("reference", func() (e error) { conv.Reference, e = ads1263.ParseReference(o.reference); return })
	parse("chop", func() (e error) { conv.Chop, e = ads1263.ParseChop(o.chop); return })
	parse("mode", func() (e error) { conv.Mode, e = ads1263.ParseInputMode(o.mode); return })
	parse("filter", func() (e error) { conv.Filter, e = ads1263.ParseFilter(o.filter); return })
	if err != nil {
		return err
	}

	if flags.Changed("positive") {
		conv.Channel.Positive = o.positive
	}
	if flags.Changed("negative") {
		conv.Channel.Negative = o.negative
	}
	if flags.Changed("out") {
		cfg.Output.Path = o.out
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("max-samples") {
		cfg.Loop.MaxSamples = o.maxSamples
	}
	if flags.Changed("status-addr") {
		cfg.Status.Addr = o.statusAddr
	}
	if flags.Changed("ready-driver") {
		cfg.Ready.Driver = o.driver
	}
	if flags.Changed("port") {
		cfg.Bus.Port = o.port
	}
	return nil
}

func runAcquisition(ctx context.Context, out io.Writer, cfg *config.Config, mock bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	settings := settingsFromConfig(cfg)
	var window *sample.Window
	if cfg.Status.Addr != "" {
		window = sample.NewWindow(cfg.Status.Window)
		settings.OnSample = window.Add
	}

	source := "ADS1263"
	if mock {
		source = "simulated ADS1263"
	}
	fmt.Fprintf(out, "bridgelog: recording %s on %s (%s), writing %s to %s\n",
		cfg.Converter.Channel, source, cfg.Converter.Config, cfg.Output.Format, cfg.Output.Path)

	s, err := session.Open(ctx, newDeps(cfg, mock), settings)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// Interrupted while opening; Open already released what it acquired.
			fmt.Fprintln(out, "bridgelog: finished, interrupted during startup, 0 samples saved")
			return nil
		}
		return err
	}

	var wg sync.WaitGroup
	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	if window != nil {
		srv := status.New(cfg.Status.Addr, status.Info{
			Converter: cfg.Converter.Config,
			Channel:   cfg.Converter.Channel,
			Output:    cfg.Output.Path,
		}, s.Stats, window, cfg.Status.Window)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(srvCtx); err != nil {
				log.Warning("Status server stopped: %v", err)
			}
		}()
	}

	err = s.Run(ctx)
	cancelSrv()
	wg.Wait()
	if err != nil {
		return err
	}

	stats := s.Stats()
	fmt.Fprintf(out, "bridgelog: finished, %d samples saved to %s (%d read errors, %d ready timeouts)\n",
		stats.Samples, cfg.Output.Path, stats.ReadErrors, stats.Timeouts)
	return nil
}
