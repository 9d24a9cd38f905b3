package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openpulse/pulseopt/internal/problem"
	"github.com/openpulse/pulseopt/internal/server"
	"github.com/openpulse/pulseopt/internal/sim"
)

var problemFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization from a problem file",
	Long:  `Loads a YAML problem file, runs the optimization and writes the result as JSON to stdout.`,
	RunE:  runProblem,
}

func init() {
	runCmd.Flags().StringVarP(&problemFile, "file", "f", "", "Problem file (required)")
	runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

func runProblem(cmd *cobra.Command, args []string) error {
	spec, err := problem.Load(problemFile)
	if err != nil {
		return err
	}

	method := spec.Method
	if method == "" {
		method = problem.MethodLeastSquares
	}
	logger.Info("starting optimization",
		zap.String("file", problemFile),
		zap.String("method", method),
		zap.Int("time_steps", spec.TimeSteps),
		zap.Int("channels", spec.Channels))

	simulator := sim.NewTargetSimulator(spec.TargetPulse()).WithStats()
	opt, err := spec.Build(simulator)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := opt.RunOptimization(spec.InitialPulse())
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	logger.Info("optimization finished",
		zap.Duration("duration", time.Since(start)),
		zap.Int("num_iter", res.NumIter),
		zap.Int("status", res.Status),
		zap.String("reason", res.TerminationReason))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(server.NewResultView(res))
}
