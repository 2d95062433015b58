package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	var (
		root      string
		thenIndex bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Crawl the blog listing and store every article",
		Long: `Walks the listing pages under the root URL until a page has too few article
links, then fetches, extracts and stores each article. The root defaults to
crawl.root_url. With --index the stored articles are indexed in the same process,
which is required when the in-memory store is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Ingest(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			appInstance.Logger().Info("Ingest command finished.",
				zap.Int("processed", summary.Processed),
				zap.Int("failed_fetches", summary.FailedFetches),
			)
			out := map[string]any{"ingest": summary}
			if thenIndex {
				indexed, err := appInstance.Index(cmd.Context())
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				out["index"] = indexed
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "listing root URL (overrides crawl.root_url)")
	cmd.Flags().BoolVar(&thenIndex, "index", false, "index stored articles after ingesting")
	return cmd
}
