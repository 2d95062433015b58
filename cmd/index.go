package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed stored articles into the search index",
		Long: `Creates the search index with its vector mapping when missing, then embeds every
stored article and bulk-upserts it. Documents are keyed by URL hash, so re-running
replaces earlier versions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Index(cmd.Context())
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}
