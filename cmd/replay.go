// File: cmd/replay.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintflow/internal/observability"
	"github.com/xkilldash9x/taintflow/internal/replay"
	"github.com/xkilldash9x/taintflow/internal/taint"
)

var replayOutput string

// replayCmd re-executes a recorded taint operation trace and prints the
// resulting evidence decomposition per reported variable.
var replayCmd = &cobra.Command{
	Use:   "replay <trace.json>",
	Short: "Replay a recorded taint operation trace and print evidence.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		defer f.Close()

		trace, err := replay.ParseTrace(f)
		if err != nil {
			return err
		}

		engine := taint.NewEngine(appConfig.Taint, logger)
		runner := replay.NewRunner(engine, logger)

		results, err := runner.Run(trace)
		if err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		logger.Info("Replay complete.",
			zap.String("trace", args[0]),
			zap.Int("reports", len(results)),
		)

		out := os.Stdout
		if replayOutput != "" {
			out, err = os.Create(replayOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer out.Close()
		}
		return replay.WriteResults(out, results)
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "write results to a file instead of stdout")
	rootCmd.AddCommand(replayCmd)
}
