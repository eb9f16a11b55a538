package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/itohio/gopowder/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger     *zap.Logger
	restoreLog func()
)

var rootCmd = &cobra.Command{
	Use:   "dosed",
	Short: "Powder dosing controller",
	Long: `dosed is the device side of the powder dosing rig.

It reads <Command,arg,...> frames from a serial port, runs the scale, relays,
pump and dispenser, and answers on the same port.

Run with --mock to serve a simulated rig, for example on one end of a
pseudo-terminal pair.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		// Device packages log through the standard logger.
		restoreLog = zap.RedirectStdLog(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if restoreLog != nil {
			restoreLog()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dosed.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd, portsCmd, storeCmd, configCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", zap.String("path", configPath))
	return cfg, nil
}
