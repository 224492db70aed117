package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

var lookPath = exec.LookPath

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and verify access to the destination folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "✔ configuration is valid")

		path, err := lookPath(cfg.DumpCommand)
		if err != nil {
			return fmt.Errorf("dump command %q not found: %w", cfg.DumpCommand, err)
		}
		fmt.Fprintf(out, "✔ dump command found at %s\n", path)

		gateway, err := newGateway(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create %s client: %w", cfg.StorageBackend, err)
		}
		if err := gateway.VerifyFolderAccess(ctx, cfg.FolderID); err != nil {
			return err
		}
		fmt.Fprintf(out, "✔ %s folder %s is accessible\n", gateway.Name(), cfg.FolderID)
		fmt.Fprintf(out, "✔ retention: %s\n", cfg.Retention)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
