package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blogem/reqtel/services"
)

var classifySince time.Duration

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run one anomaly classification pass over stored audit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if classifySince <= 0 {
			return fmt.Errorf("--since must be positive, got %s", classifySince)
		}

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

		anomaly := services.NewAnomalyService(st.repos.Audit, anomalyConfig(cfg.Anomaly), nil, logger)
		result, err := anomaly.ClassifyRecent(cmd.Context(), time.Now().Add(-classifySince))
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	classifyCmd.Flags().DurationVar(&classifySince, "since", 24*time.Hour, "reclassify records newer than this")
}
