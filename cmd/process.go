package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/internal/app"
)

var processSinks []string

var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Process batch files once",
	Long: `Process the given batch files, or every pending file in the drop
directory when none are given, then exit.

Successful files are archived; failed files are left in place and recorded
in the dead letter queue.`,
	RunE: processFiles,
}

func init() {
	processCmd.Flags().StringSliceVar(&processSinks, "sink", nil, "sinks to write to, overriding sinks.enabled")
	rootCmd.AddCommand(processCmd)
}

func processFiles(cmd *cobra.Command, args []string) error {
	engine, err := app.New(cmd.Context(), cfg, logger, app.Options{Sinks: processSinks})
	if err != nil {
		return err
	}
	defer engine.Close()

	if len(args) == 0 {
		n, err := engine.Processor.ProcessPending(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d pending batch(es)\n", n)
		return nil
	}

	var failed int
	for _, path := range args {
		res, err := engine.Processor.ProcessFile(cmd.Context(), path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d record(s), %d point(s)\n", path, res.Records, len(res.Points))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batch(es) failed", failed, len(args))
	}
	return nil
}
