package main

import (
	"github.com/spf13/cobra"

	"github.com/itohio/gobridge/pkg/log"
	"github.com/itohio/gobridge/pkg/sink"
)

func newExportCommand() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a bolt store to stdout as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if meta, err := sink.Meta(in); err == nil {
				for k, v := range meta {
					log.Debug("%s: %s = %s", in, k, v)
				}
			}
			n, err := sink.Export(in, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			log.Info("Exported %d samples from %s", n, in)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Bolt store to export")
	if err := cmd.MarkFlagRequired("in"); err != nil {
		// Only fails when the flag is not defined.
		panic(err)
	}
	return cmd
}
