package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/loader"
)

var loadYear int

var loadCmd = &cobra.Command{
	Use:   "load <file>...",
	Short: "Bulk-load directory spreadsheets into the phone directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		d := loader.NewDirectory(st, cfg.Loader.ChunkSize, nil)
		summaries, err := d.LoadFiles(ctx, args, loadYear)
		if err != nil {
			return err
		}

		for _, s := range summaries {
			zap.L().Info("load summary",
				zap.String("file", s.File),
				zap.Int("rows", s.Rows),
				zap.Int64("identifiers", s.Identifiers),
				zap.Int64("phones", s.Phones),
				zap.Int("chunks", s.Chunks),
				zap.Int("failed_rows", s.FailedRows),
			)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().IntVar(&loadYear, "year", 0, "load year the directory data belongs to (required)")
	_ = loadCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(loadCmd)
}
