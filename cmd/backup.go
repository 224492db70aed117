package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Prune old archives, dump the database and upload the new archive",
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

		report, err := backup.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("state", string(report.State)).Dur("duration", report.Duration).Msg("Backup failed")
			return err
		}

		event := log.Info()
		if report.UploadErr != nil {
			event = log.Warn().AnErr("upload_error", report.UploadErr)
		}
		event.Str("state", string(report.State)).Dur("duration", report.Duration).Msg("Backup finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
