package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report what the article store and the search index hold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
