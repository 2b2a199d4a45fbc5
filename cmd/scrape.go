package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScrapeCmd() *cobra.Command {
	var (
		countries []string
		convert   bool
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes the configured countries once and archives the snapshot",
		Long: `Fetches every country's pricing page through the worker pool, archives the
snapshot and, with --convert, builds a ranked report from it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Scrape(cmd.Context(), countries)
			if res.Snapshot != nil {
				renderSnapshot(cmd.OutOrStdout(), res.Snapshot)
			}
			if err != nil {
				return err
			}
			appInstance.Logger().Info("scrape finished",
				zap.String("run_id", res.RunID),
				zap.String("latest", res.Archive.LatestURI),
				zap.Strings("failed", res.Failed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s archived to %s\n", res.RunID, res.Archive.ArchiveURI)
			if !convert {
				return nil
			}
			return runConvert(cmd, appInstance, "all")
		},
	}
	cmd.Flags().StringSliceVar(&countries, "countries", nil, "country codes to scrape (default: configured set)")
	cmd.Flags().BoolVar(&convert, "convert", false, "build a ranked report after scraping")
	return cmd
}
