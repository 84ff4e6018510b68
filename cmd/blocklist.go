package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/loader"
	"github.com/leadops/leadbase-cli/internal/normalize"
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Manage the do-not-call phone blocklist",
}

var blocklistFeedCmd = &cobra.Command{
	Use:   "feed <file>...",
	Short: "Feed phones from spreadsheets into the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		feed := loader.NewBlocklistFeed(st, cfg.Blocklist.ChunkSize)
		for _, path := range args {
			summary, err := feed.FeedFile(ctx, path)
			if err != nil {
				return err
			}
			zap.L().Info("blocklist feed summary",
				zap.String("file", summary.File),
				zap.Int("rows", summary.Scanned),
				zap.Int("phones", summary.Valid),
				zap.Int64("inserted", summary.Inserted),
			)
		}
		return nil
	},
}

var blocklistCheckCmd = &cobra.Command{
	Use:   "check <phone>...",
	Short: "Check whether phones are blocklisted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		phones := make([]string, 0, len(args))
		for _, raw := range args {
			if p, ok := normalize.Phone(raw); ok {
				phones = append(phones, p)
			}
		}

		blocked, err := st.FindBlockedPhones(ctx, phones)
		if err != nil {
			return err
		}

		blockedSet := make(map[string]struct{}, len(blocked))
		for _, p := range blocked {
			blockedSet[p] = struct{}{}
		}
		for _, p := range phones {
			if _, ok := blockedSet[p]; ok {
				fmt.Printf("%s\tblocked\n", p)
			} else {
				fmt.Printf("%s\tok\n", p)
			}
		}
		return nil
	},
}

var blocklistStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show blocklist totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetBlocklistStats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("total phones:\t%d\n", stats.Total)
		fmt.Printf("added today:\t%d\n", stats.AddedToday)
		return nil
	},
}

func init() {
	blocklistCmd.AddCommand(blocklistFeedCmd)
	blocklistCmd.AddCommand(blocklistCheckCmd)
	blocklistCmd.AddCommand(blocklistStatsCmd)
	rootCmd.AddCommand(blocklistCmd)
}
