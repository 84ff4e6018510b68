package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/organize"
)

var (
	organizeProfile string
	organizeOut     string
)

var organizeCmd = &cobra.Command{
	Use:   "organize <file>",
	Short: "Convert a vendor export to the dialer layout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Organize.ProfilesPath == "" {
			return eris.New("organize profiles path is required (LEADBASE_ORGANIZE_PROFILES_PATH)")
		}
		profiles, err := organize.LoadProfiles(cfg.Organize.ProfilesPath)
		if err != nil {
			return err
		}

		outPath := organizeOut
		if outPath == "" {
			outPath = organizedPath(args[0])
		}

		n, err := organize.New(profiles).Organize(ctx, args[0], organizeProfile, outPath)
		if err != nil {
			return err
		}

		zap.L().Info("organize complete",
			zap.String("file", args[0]),
			zap.String("out", outPath),
			zap.Int("rows", n),
		)
		return nil
	},
}

func organizedPath(path string) string {
	if i := strings.LastIndex(path, "."); i > 0 {
		return path[:i] + "_organized" + path[i:]
	}
	return path + "_organized"
}

func init() {
	organizeCmd.Flags().StringVar(&organizeProfile, "profile", "", "layout profile name (required)")
	organizeCmd.Flags().StringVar(&organizeOut, "out", "", "output path (default alongside the input)")
	_ = organizeCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(organizeCmd)
}
