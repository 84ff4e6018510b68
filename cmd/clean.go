package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/cleaner"
)

var (
	cleanNoHistoryCheck bool
	cleanNoHistory      bool
	cleanNoBackup       bool
	cleanNoPhones       bool
	cleanNoBlocklist    bool
	cleanRootFile       string
	cleanRootColumn     string
	cleanMatchColumn    string
	cleanCNAEs          []string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>...",
	Short: "Clean lead spreadsheets against history, root set and blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cache, err := initHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := cleaner.Options{
			CheckHistory:       cfg.Clean.CheckHistory && !cleanNoHistoryCheck,
			SaveToHistory:      cfg.Clean.SaveToHistory && !cleanNoHistory,
			Backup:             cfg.Clean.Backup && !cleanNoBackup,
			UseRoot:            cleanRootFile == "",
			RootFile:           cleanRootFile,
			RootFileColumn:     cleanRootColumn,
			RootMatchColumn:    cleanMatchColumn,
			CleanPhones:        !cleanNoPhones,
			CheckBlocklist:     cfg.Clean.CheckBlocklist && !cleanNoBlocklist,
			ProhibitedCNAEs:    cfg.Clean.ProhibitedCNAEs,
			BlocklistBatchSize: cfg.Clean.BlocklistBatchSize,
		}
		if len(cleanCNAEs) > 0 {
			opts.ProhibitedCNAEs = cleanCNAEs
		}

		engine := cleaner.New(cache, st, nil)
		run, err := engine.CleanFiles(ctx, args, opts)
		if err != nil {
			return err
		}

		for _, s := range run.Files {
			zap.L().Info("clean summary",
				zap.String("file", s.File),
				zap.Int("rows", s.TotalRows),
				zap.Int("kept", s.FinalRows),
				zap.Int("duplicates", s.Duplicates),
				zap.Int("removed_by_root", s.RemovedByRoot),
				zap.Int("removed_by_cnae", s.RemovedByCNAE),
				zap.Int("removed_by_blocklist", s.RemovedByBlocklist),
				zap.Int("phones_cleaned", s.PhonesCleaned),
			)
		}
		zap.L().Info("clean run done",
			zap.Int("files", len(run.Files)),
			zap.Int("new_identifiers", run.NewIdentifiers),
			zap.String("batch_tag", run.HistoryBatchTag),
			zap.Int64("inserted", run.HistoryInserted),
		)
		return nil
	},
}

var cleanDBCmd = &cobra.Command{
	Use:   "clean-db <file>...",
	Short: "Clean lead spreadsheets against the history set only",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cache, err := initHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := cleaner.DBOnlyOptions(
			cfg.Clean.SaveToHistory && !cleanNoHistory,
			cfg.Clean.Backup && !cleanNoBackup,
		)

		engine := cleaner.New(cache, st, nil)
		run, err := engine.CleanFiles(ctx, args, opts)
		if err != nil {
			return err
		}

		for _, s := range run.Files {
			zap.L().Info("clean-db summary",
				zap.String("file", s.File),
				zap.Int("rows", s.TotalRows),
				zap.Int("kept", s.FinalRows),
				zap.Int("duplicates", s.Duplicates),
			)
		}
		zap.L().Info("clean-db run done",
			zap.Int("files", len(run.Files)),
			zap.Int("new_identifiers", run.NewIdentifiers),
			zap.String("batch_tag", run.HistoryBatchTag),
			zap.Int64("inserted", run.HistoryInserted),
		)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cleanCmd, cleanDBCmd} {
		c.Flags().BoolVar(&cleanNoHistory, "no-history", false, "do not save cleaned identifiers to history")
		c.Flags().BoolVar(&cleanNoBackup, "no-backup", false, "do not write a backup copy before rewriting")
	}
	cleanCmd.Flags().BoolVar(&cleanNoHistoryCheck, "no-history-check", false, "skip the history duplicate check")
	cleanCmd.Flags().BoolVar(&cleanNoPhones, "no-phones", false, "skip landline phone hygiene")
	cleanCmd.Flags().BoolVar(&cleanNoBlocklist, "no-blocklist", false, "skip the blocklist check")
	cleanCmd.Flags().StringVar(&cleanRootFile, "root-file", "", "load the root set from this spreadsheet instead of the root table")
	cleanCmd.Flags().StringVar(&cleanRootColumn, "root-column", "", "identifier column of the root file (default cnpj/chave, else first)")
	cleanCmd.Flags().StringVar(&cleanMatchColumn, "match-column", "", "column matched against the root set (default the identifier column)")
	cleanCmd.Flags().StringSliceVar(&cleanCNAEs, "cnae", nil, "prohibited CNAE prefixes (overrides config)")
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(cleanDBCmd)
}
