package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete remote archives older than the retention window without taking a new dump",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancel := withRunTimeout(cmd.Context(), cfg.RunTimeout)
		defer cancel()

		backup, err := newBackup(ctx, cfg)
		if err != nil {
			return err
		}

		report, err := backup.Prune(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("deleted", report.Prune.Deleted).
			Int("skipped", report.Prune.Skipped).
			Bool("truncated", report.Prune.Truncated).
			Time("cutoff", report.Cutoff).
			Msg("Prune finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
