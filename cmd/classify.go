package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
)

var classifyListing bool

var classifyCmd = &cobra.Command{
	Use:   "classify <name>",
	Short: "Show the sector and organization type for an entity name",
	Long: `Classify an entity name with the configured sector table.

With --listing the text is treated as a market post and its product and
category are printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: classify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyListing, "listing", false, "classify the text as a market listing")
	rootCmd.AddCommand(classifyCmd)
}

func classify(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if classifyListing {
		listing, ok := classifier.ParseListing(classifier.DefaultListingTable(), text)
		if !ok {
			fmt.Fprintln(out, "not a listing")
			return nil
		}
		fmt.Fprintf(out, "product:  %s\ncategory: %s\n", listing.Product, listing.Category)
		return nil
	}

	cls := classifier.Default()
	if cfg.Classifier.SectorTable != "" {
		loaded, err := classifier.Load(cfg.Classifier.SectorTable)
		if err != nil {
			return err
		}
		cls = loaded
	}
	sector := cls.ClassifySector(text)
	fmt.Fprintf(out, "sector:   %s\norg_type: %s\n", sector, cls.ClassifyOrgType(sector))
	return nil
}
