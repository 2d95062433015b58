package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid query against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, fusion, err := appInstance.Search(cmd.Context(), query, k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"query":   query,
				"fusion":  fusion,
				"results": results,
			})
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (default search.default_k)")
	return cmd
}
