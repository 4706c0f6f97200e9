// Command equilibrium runs timed and threshold controllers against GPIO and
// file-backed devices and publishes their state changes to a broker.
package main

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/sweeney/equilibrium/internal/config"
	"github.com/sweeney/equilibrium/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "equilibrium",
		Short:        "Fixed-interval controller runtime for relays, pumps and heaters",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "/etc/equilibrium.yaml", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	root.AddCommand(newRunCmd(g), newValidateCmd(g), newReadCmd(g))
	return root
}

// setup loads the config and builds the logger. The returned func flushes
// the logger.
func (g *globalFlags) setup() (*config.Config, logr.Logger, func(), error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, logr.Discard(), func() {}, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	log, sync, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, logr.Discard(), func() {}, err
	}
	return cfg, log, sync, nil
}
