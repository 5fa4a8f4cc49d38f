package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/pipeline"
)

var loadCompany string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replay captured record snapshots into the store",
	Long:  "Reads the record snapshots a previous extraction left in the artifact directory and loads them through the dedup loader. Safe to run repeatedly: unchanged records are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		companies := cfg.Batch.Companies
		if loadCompany != "" {
			companies = []string{loadCompany}
		}

		p := pipeline.New(cfg, st)
		var all []any
		for _, company := range companies {
			stats, err := p.Replay(ctx, company)
			if err != nil {
				zap.L().Error("replay failed",
					zap.String("company", company),
					zap.Error(err),
				)
				continue
			}
			all = append(all, stats)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadCompany, "company", "", "load a single company (aire or afinia)")
	rootCmd.AddCommand(loadCmd)
}
