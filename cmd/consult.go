package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/consult"
	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/pkg/eligibility"
)

var (
	consultMode        string
	consultExtractPath string
	consultKeepAvail   bool
)

// initConsultEngine wires the eligibility client and consultation engine
// from config. Used by both the consult command and serve.
func initConsultEngine() (*consult.Engine, error) {
	if err := cfg.Validate("consult"); err != nil {
		return nil, err
	}

	modeName := consultMode
	if modeName == "" {
		modeName = cfg.Consult.Mode
	}
	mode, err := model.ParseCredentialMode(modeName)
	if err != nil {
		return nil, err
	}

	client := eligibility.NewClient(cfg.Consult.TokenURL, cfg.Consult.QueryURL)
	return consult.NewEngine(client, consult.Options{
		BatchSize:    cfg.Consult.BatchSize,
		MaxAttempts:  cfg.Consult.MaxAttempts,
		RetryDelay:   cfg.Consult.RetryDelay,
		Cooldown:     cfg.Consult.Cooldown,
		Mode:         mode,
		ResultColumn: cfg.Consult.ResultColumn,
		Primary: eligibility.Credentials{
			ClientID:     cfg.Consult.Primary.ClientID,
			ClientSecret: cfg.Consult.Primary.ClientSecret,
		},
		Secondary: eligibility.Credentials{
			ClientID:     cfg.Consult.Secondary.ClientID,
			ClientSecret: cfg.Consult.Secondary.ClientSecret,
		},
	}, nil), nil
}

var consultCmd = &cobra.Command{
	Use:   "consult <file>...",
	Short: "Consult spreadsheets against the remote eligibility API",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		engine, err := initConsultEngine()
		if err != nil {
			return err
		}

		for _, path := range args {
			summary, err := engine.ConsultFile(ctx, path)
			if err != nil {
				return err
			}
			zap.L().Info("consult summary",
				zap.String("file", summary.File),
				zap.Int("rows", summary.TotalRows),
				zap.Int("consulted", summary.Consulted),
				zap.Int("available", summary.Available),
				zap.Int("clients", summary.Clients),
				zap.Int("skipped", summary.Skipped),
				zap.Int("abandoned", summary.Abandoned),
			)
		}

		if consultExtractPath != "" {
			n, err := engine.ExtractClients(ctx, args, consultExtractPath)
			if err != nil {
				return err
			}
			zap.L().Info("clients extracted",
				zap.Int("rows", n), zap.String("out", consultExtractPath))
		}

		if consultKeepAvail {
			for _, path := range args {
				kept, removed, err := engine.KeepAvailable(ctx, path)
				if err != nil {
					return err
				}
				zap.L().Info("kept available rows",
					zap.String("file", path),
					zap.Int("kept", kept),
					zap.Int("removed", removed))
			}
		}
		return nil
	},
}

func init() {
	consultCmd.Flags().StringVar(&consultMode, "mode", "", "credential mode: primary, secondary, alternate or dual (default from config)")
	consultCmd.Flags().StringVar(&consultExtractPath, "extract-clients", "", "write rows marked as clients to this file after consulting")
	consultCmd.Flags().BoolVar(&consultKeepAvail, "keep-available", false, "rewrite files keeping only available rows, verdict cleared")
	rootCmd.AddCommand(consultCmd)
}
