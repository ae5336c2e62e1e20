package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/gobridge/pkg/ads1263"
	"github.com/itohio/gobridge/pkg/session"
	"github.com/itohio/gobridge/pkg/sim"
)

func newProbeCommand(root *rootOptions) *cobra.Command {
	var mock bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Identify the converter and dump its registers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg

			var t ads1263.Transport
			if mock {
				t = sim.New(&cfg.Mock)
			} else {
				bus, err := openBus(cfg)
				if err != nil {
					return &session.StageError{Stage: session.StageInitialize, Err: err}
				}
				t = bus
			}
			dev := ads1263.New(t, deviceOptions(cfg))
			defer dev.Shutdown()

			if err := dev.Initialize(); err != nil {
				return &session.StageError{Stage: session.StageInitialize, Err: err}
			}
			regs, err := dev.Registers()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ADS1263 revision %d\n", dev.Revision())
			for addr, v := range regs {
				fmt.Fprintf(out, "0x%02X  %-9s 0x%02X\n", addr, ads1263.RegisterName(byte(addr)), v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mock, "mock", false, "Probe the simulated converter")
	return cmd
}
