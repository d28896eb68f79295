package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/config"
	"github.com/rl1809/grocery-inventory/internal/logging"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "grocery",
		Short:         "In-memory grocery shelf inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")

	root.AddCommand(newServeCommand(), newLayoutCommand(), newStressCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "grocery: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
