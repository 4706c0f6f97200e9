package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweeney/equilibrium/internal/config"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and construct every controller without touching hardware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, sync, err := g.setup()
			if err != nil {
				return err
			}
			defer sync()

			built, err := config.Build(cfg, config.ModeValidate, log)
			if err != nil {
				return err
			}
			defer built.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d controllers, %d inputs, %d outputs\n",
				built.Group.Len(), len(built.Inputs), len(built.Outputs))
			return nil
		},
	}
}
