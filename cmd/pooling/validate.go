package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and list its pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.v.GetString("config") == "" {
				return errors.New(errors.ErrorTypeValidation, "--config is required")
			}
			cfg, err := a.setup()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration valid: %d pool(s)\n", len(cfg.Pools))
			if len(cfg.Pools) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tCONFIG\tWARM UP")
			for _, spec := range cfg.Pools {
				poolCfg, err := spec.ToConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", spec.Key, spec.Name, poolCfg, spec.WarmUp)
			}
			return tw.Flush()
		},
	}
}
