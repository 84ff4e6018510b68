package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/loader"
)

var rootFeedCmd = &cobra.Command{
	Use:   "root-feed <file>...",
	Short: "Feed client identifiers into the root exclusion set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		feed := loader.NewRootFeed(st, cfg.Loader.RootChunkSize)
		for _, path := range args {
			summary, err := feed.FeedFile(ctx, path)
			if err != nil {
				return err
			}
			zap.L().Info("root feed summary",
				zap.String("file", summary.File),
				zap.Int("scanned", summary.Scanned),
				zap.Int("valid", summary.Valid),
				zap.Int64("inserted", summary.Inserted),
				zap.String("batch_tag", summary.BatchTag),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rootFeedCmd)
}
