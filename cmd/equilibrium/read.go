package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/sweeney/equilibrium/internal/config"
)

func newReadCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read every configured input once and print the raw values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, sync, err := g.setup()
			if err != nil {
				return err
			}
			defer sync()
			return readInputs(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
}

// readInputs prints "name: raw" per input in config order. Outputs are not
// opened.
func readInputs(ctx context.Context, cfg *config.Config, log logr.Logger, out io.Writer) error {
	built, err := config.Build(cfg, config.ModeDryRun, log)
	if err != nil {
		return err
	}
	defer built.Close()

	failed := 0
	for _, d := range cfg.Devices.Inputs {
		raw, err := built.Inputs[d.Name].Read(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", d.Name, err)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", d.Name, raw)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(cfg.Devices.Inputs))
	}
	return nil
}
