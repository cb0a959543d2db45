package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/internal/simulate"
)

var (
	simOutDir string
	simPrefix string
	simSeed   int64
	simStdout bool
	simCounts = simulate.DefaultCounts()
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic batch file",
	Long: `Generate a synthetic batch and drop it where the engine picks it up.

The default batch contains the corporate headquarters scenario (Ferrari,
Nintendo, Emirates Airlines) plus one or more records for every metric
family.

Examples:
  # Drop a default batch into pipeline.drop_dir
  intel simulate

  # Only the corporate scenario, printed instead of written
  intel simulate --victims 0 --c2 0 --market 0 --leads 0 --health 0 --security 0 --news 0 --stdout`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOutDir, "out", "", "output directory (default: pipeline.drop_dir)")
	f.StringVar(&simPrefix, "prefix", "simulation", "batch file name prefix")
	f.Int64Var(&simSeed, "seed", 0, "random seed (0 = random)")
	f.BoolVar(&simStdout, "stdout", false, "print the batch instead of writing a file")
	f.BoolVar(&simCounts.Corporate, "corporate", simCounts.Corporate, "include the corporate headquarters scenario")
	f.IntVar(&simCounts.Victims, "victims", simCounts.Victims, "leak-site victim records")
	f.IntVar(&simCounts.C2, "c2", simCounts.C2, "C2 indicator records")
	f.IntVar(&simCounts.Market, "market", simCounts.Market, "market listing records")
	f.IntVar(&simCounts.Leads, "leads", simCounts.Leads, "target discovery records")
	f.IntVar(&simCounts.Health, "health", simCounts.Health, "infrastructure health records")
	f.IntVar(&simCounts.Security, "security", simCounts.Security, "host security records")
	f.IntVar(&simCounts.News, "news", simCounts.News, "news feed records")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	batch := simulate.NewGenerator(simSeed).Batch(simCounts)

	if simStdout {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "    ")
		return enc.Encode(batch)
	}

	dir := simOutDir
	if dir == "" {
		dir = cfg.Pipeline.DropDir
	}
	path, err := simulate.WriteBatch(dir, simPrefix, batch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated %d record(s): %s\n", len(batch), path)
	return nil
}
