package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/sheetops"
)

var (
	mergeOut      string
	mergeTake     string
	mergeCustom   int
	mergeDedupCol string
	mergeSegment  bool

	splitRows int
)

var mergeCmd = &cobra.Command{
	Use:   "merge <file>...",
	Short: "Merge spreadsheets into one file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		take, err := sheetops.ParseTakeStrategy(mergeTake)
		if err != nil {
			return err
		}

		res, err := sheetops.Merge(cmd.Context(), args, mergeOut, sheetops.MergeOptions{
			Take:        take,
			CustomRows:  mergeCustom,
			DedupColumn: mergeDedupCol,
			Segment:     mergeSegment,
		})
		if err != nil {
			return err
		}

		zap.L().Info("merge complete",
			zap.Int("rows", res.Rows),
			zap.Int("duplicates", res.Duplicates),
			zap.Strings("outputs", res.Outputs),
		)
		return nil
	},
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle <file>",
	Short: "Shuffle the data rows of a spreadsheet in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sheetops.Shuffle(args[0])
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split a spreadsheet into fixed-size parts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parts, err := sheetops.Split(args[0], splitRows)
		if err != nil {
			return err
		}
		zap.L().Info("split complete",
			zap.String("file", args[0]),
			zap.Strings("parts", parts),
		)
		return nil
	},
}

var adjustCmd = &cobra.Command{
	Use:   "adjust <file>...",
	Short: "Compact phone columns left and strip formatting",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			n, err := sheetops.AdjustPhones(path)
			if err != nil {
				return err
			}
			zap.L().Info("adjust complete",
				zap.String("file", path),
				zap.Int("rows_changed", n),
			)
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeOut, "out", "merged.xlsx", "output path")
	mergeCmd.Flags().StringVar(&mergeTake, "take", "full", "rows to take from each file: full, half or custom")
	mergeCmd.Flags().IntVar(&mergeCustom, "rows", 0, "rows per file when --take=custom")
	mergeCmd.Flags().StringVar(&mergeDedupCol, "dedup", "", "identifier column to deduplicate on")
	mergeCmd.Flags().BoolVar(&mergeSegment, "segment", false, "split output into four parts above one million rows")
	splitCmd.Flags().IntVar(&splitRows, "rows", 0, "data rows per part (required)")
	_ = splitCmd.MarkFlagRequired("rows")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(shuffleCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(adjustCmd)
}
