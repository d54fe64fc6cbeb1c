package main

import (
	"fmt"

	"github.com/leandrodaf/stagewire/internal/config"
	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	logLevel string

	// Shared state set during PersistentPreRun
	cfg   *config.Config
	log   *logger.ZapLogger
	level contracts.LogLevel
)

var rootCmd = &cobra.Command{
	Use:   "stagewire",
	Short: "Show-control output engine for MIDI, MSC/MMC and DMX",
	Long: `stagewire pushes lighting frames to Art-Net and DMX USB Pro devices,
sends MIDI Show Control and MIDI Machine Control commands, and tracks the
other nodes announcing themselves on the show network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		level, err = logger.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		log, err = logger.FromConfig(level, contracts.LogFormat(cfg.Logging.Format))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stagewire.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}
