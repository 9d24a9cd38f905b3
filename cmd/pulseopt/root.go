package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openpulse/pulseopt/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pulseopt",
	Short: "Pulse optimization for quantum control",
	Long: `pulseopt shapes control pulses against a target using gradient,
annealing and population optimization methods, either as a one-shot
CLI run or as an HTTP job service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: "stderr",
		})
		if err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (json, console)")
}
