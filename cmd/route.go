package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/internal/app"
	"github.com/telhawk-systems/telhawk-intel/internal/sink"
	"github.com/telhawk-systems/telhawk-intel/internal/source"
)

var routeJSON bool

var routeCmd = &cobra.Command{
	Use:   "route <file>",
	Short: "Print the points a batch file would produce without writing them",
	Args:  cobra.ExactArgs(1),
	RunE:  routeFile,
}

func init() {
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "print points as JSON instead of line protocol")
	rootCmd.AddCommand(routeCmd)
}

func routeFile(cmd *cobra.Command, args []string) error {
	batch, err := source.ReadBatch(args[0])
	if err != nil {
		return err
	}

	engine, err := app.New(cmd.Context(), cfg, logger, app.Options{SkipSinks: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	points, err := engine.DryRun.Route(cmd.Context(), batch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if routeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}
	for _, p := range points {
		fmt.Fprint(out, sink.LineProtocol(p))
	}
	return nil
}
