package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/internal/app"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run a single enrichment lookup",
}

var enrichIPCmd = &cobra.Command{
	Use:   "ip <address>",
	Short: "Resolve network ownership of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := app.New(cmd.Context(), cfg, logger, app.Options{SkipSinks: true})
		if err != nil {
			return err
		}
		defer engine.Close()

		res := engine.Enricher.ResolveOwnership(cmd.Context(), args[0])
		return printJSON(cmd, map[string]any{
			"asn":     res.ASN,
			"org":     res.Org,
			"country": res.Country,
			"outcome": res.Outcome,
		})
	},
}

var enrichGeoCmd = &cobra.Command{
	Use:   "geo <name>",
	Short: "Resolve the location of an entity or place name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := app.New(cmd.Context(), cfg, logger, app.Options{SkipSinks: true})
		if err != nil {
			return err
		}
		defer engine.Close()

		res := engine.Enricher.ResolveLocation(cmd.Context(), args[0])
		return printJSON(cmd, map[string]any{
			"lat":      res.Lat,
			"lon":      res.Lon,
			"country":  res.Country,
			"found":    res.Found,
			"outcome":  res.Outcome,
			"provider": res.Provider,
		})
	},
}

func init() {
	enrichCmd.AddCommand(enrichIPCmd)
	enrichCmd.AddCommand(enrichGeoCmd)
	rootCmd.AddCommand(enrichCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
