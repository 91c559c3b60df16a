package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print counters of the retained audit store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		st, err := openStore(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := st.repos.Audit.Summary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read summary: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📊 Audit records:   %d\n", summary.Total)
		fmt.Fprintf(out, "🚩 Flagged:         %d\n", summary.Flagged)
		fmt.Fprintf(out, "🔒 Failed logins:   %d\n", summary.FailedAuth)
		return nil
	},
}
