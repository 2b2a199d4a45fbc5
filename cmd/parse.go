package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing/page"
)

// newParseCmd extracts plans from a saved page. It needs no configuration or services.
func newParseCmd() *cobra.Command {
	var (
		country string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "parse <file.html>",
		Short: "Extracts plan records from a saved pricing page",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read page: %w", err)
			}
			parser := page.NewParser(pricing.DefaultTables(), page.DefaultLayout())
			res := parser.ParseDetailed(string(data), country)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				if err := enc.Encode(res.Records); err != nil {
					return fmt.Errorf("encode records: %w", err)
				}
				return nil
			}
			renderRecords(out, res.Records)
			fmt.Fprintln(out, res.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "two-letter country code of the page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}
