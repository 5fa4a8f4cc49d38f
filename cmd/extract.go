package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/pipeline"
)

var extractCompany string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract PQR records to disk without loading them",
	Long:  "Runs the browser pipeline and writes documents, attachments and record snapshots to the artifact directory. Use 'load' afterwards to replay the snapshots into the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		if extractCompany != "" {
			cfg.Batch.Companies = []string{extractCompany}
		}

		p := pipeline.New(cfg, nil)
		all, err := p.RunAll(ctx)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		for _, stats := range all {
			zap.L().Info("extraction complete",
				zap.String("company", stats.Company),
				zap.Int("total_processed", stats.TotalProcessed),
				zap.Int("successful", stats.Successful),
				zap.Int("failed", stats.Failed),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCompany, "company", "", "extract a single company (aire or afinia)")
	rootCmd.AddCommand(extractCmd)
}
