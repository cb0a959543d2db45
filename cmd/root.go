// Package cmd implements the intel command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/common/config"
	"github.com/telhawk-systems/telhawk-intel/common/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intel",
	Short: "TelHawk threat intelligence enrichment engine",
	Long: `intel turns raw intelligence records from collectors into enriched
time-series metric points.

Records are read as JSON batch files from a drop directory, routed into
metric families, enriched with network ownership and geolocation, and
written to InfluxDB, NATS, stdout or a line protocol file.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $INTEL_CONFIG_DIR/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override: json, text")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	// stdout carries command output; logs go to stderr.
	l := logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(l)
	logger = l.With(logging.Service("telhawk-intel")).Logger
	return nil
}
