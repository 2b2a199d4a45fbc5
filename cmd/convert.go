package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
)

func newConvertCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Converts the latest snapshot into the target currency and ranks it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runConvert(cmd, appInstance, category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "all",
		"ranking to print: all, monthly, yearly, bundle or tier:<Plan>")
	return cmd
}

func runConvert(cmd *cobra.Command, appInstance App, category string) error {
	report, written, err := appInstance.Report(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	rk, ok := report.Ranking(exchange.Category(category))
	if !ok {
		return fmt.Errorf("report has no %q ranking", category)
	}
	renderRanking(out, rk, report.Metadata.TargetCurrency)
	m := report.Metadata
	fmt.Fprintf(out, "%d/%d countries converted, %d plans, %d conversion misses\n",
		m.SuccessfulCountries, m.TotalCountries, m.TotalPlans, m.ConversionMisses)
	if written.LatestURI != "" {
		fmt.Fprintf(out, "report written to %s\n", written.LatestURI)
	}
	return nil
}
