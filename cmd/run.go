package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/pipeline"
)

var runCompany string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract and load PQR records for the configured companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		if runCompany != "" {
			cfg.Batch.Companies = []string{runCompany}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := pipeline.New(cfg, st)
		all, err := p.RunAll(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		for _, stats := range all {
			zap.L().Info("run complete",
				zap.String("company", stats.Company),
				zap.Int("total_processed", stats.TotalProcessed),
				zap.Int("successful", stats.Successful),
				zap.Int("inserted", stats.Inserted),
				zap.Int("updated", stats.Updated),
				zap.Int("skipped", stats.Skipped),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "run a single company (aire or afinia) instead of the configured batch")
	rootCmd.AddCommand(runCmd)
}
