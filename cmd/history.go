package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/sheet"
)

var historyExportPath string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the contact history set",
}

var historyDeleteBatchCmd = &cobra.Command{
	Use:   "delete-batch <batch-tag>",
	Short: "Delete one history batch by tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		deleted, err := st.DeleteHistoryBatch(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("history batch deleted",
			zap.String("batch_tag", args[0]),
			zap.Int("identifiers", len(deleted)),
		)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full history set to a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.LoadHistory(ctx)
		if err != nil {
			return err
		}

		out := &sheet.Sheet{Name: "history", Header: []string{"chave"}}
		out.Rows = make([][]string, len(ids))
		for i, id := range ids {
			out.Rows[i] = []string{id}
		}
		if err := out.Save(historyExportPath); err != nil {
			return err
		}

		zap.L().Info("history exported",
			zap.Int("identifiers", len(ids)),
			zap.String("out", historyExportPath),
		)
		return nil
	},
}

func init() {
	historyExportCmd.Flags().StringVar(&historyExportPath, "out", "history.xlsx", "output spreadsheet path")
	historyCmd.AddCommand(historyDeleteBatchCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
