package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/enrich"
	"github.com/leadops/leadbase-cli/internal/model"
)

var (
	enrichStrategy string
	enrichYears    []int
	enrichBackup   bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <file>...",
	Short: "Fill phone columns from the directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		strategyName := enrichStrategy
		if strategyName == "" {
			strategyName = cfg.Enrich.Strategy
		}
		strategy, err := model.ParseStrategy(strategyName)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := enrich.New(st, nil)
		summaries, err := engine.EnrichFiles(ctx, args, enrich.Options{
			BatchSize: cfg.Enrich.BatchSize,
			Strategy:  strategy,
			Years:     enrichYears,
			Backup:    enrichBackup,
		})
		if err != nil {
			return err
		}

		for _, s := range summaries {
			zap.L().Info("enrich summary",
				zap.String("file", s.File),
				zap.Int("rows", s.TotalRows),
				zap.Int("enriched", s.Enriched),
				zap.Int("poor", s.Poor),
				zap.Int("not_found", s.NotFound),
				zap.Duration("elapsed", s.Elapsed),
			)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichStrategy, "strategy", "", "phone merge strategy: overwrite, append or ignore (default from config)")
	enrichCmd.Flags().IntSliceVar(&enrichYears, "year", nil, "restrict directory lookup to these load years")
	enrichCmd.Flags().BoolVar(&enrichBackup, "backup", false, "write a backup copy before rewriting")
	rootCmd.AddCommand(enrichCmd)
}
