package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/d4rkfella/db-backup/internal/config"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/pkg/storage/storagetest"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	cfgFile = filepath.Join(os.TempDir(), "nonexistent-dir", "nonexistent.yaml")

	err = root.ExecuteContext(context.Background())

	return buf.String(), err
}

// setupCommandTest resets viper with a runnable configuration backed by an
// in-memory gateway and a shell dump command.
func setupCommandTest(t *testing.T, script string) (*storagetest.Gateway, string) {
	t.Helper()
	viper.Reset()

	tempDir := t.TempDir()
	viper.Set("log_level", "error")
	viper.Set("database_url", "postgres://app:pw@db:5432/prod")
	viper.Set("dump_command", "sh")
	viper.Set("dump_args", []string{"-c", script})
	viper.Set("temp_dir", tempDir)
	viper.Set("folder_id", "folder-1")
	viper.Set("drive_credentials_file", "/dev/null")

	gw := storagetest.New()
	origGateway := newGateway
	newGateway = func(context.Context, *config.Config) (storage.Gateway, error) { return gw, nil }
	t.Cleanup(func() {
		newGateway = origGateway
		viper.Reset()
	})
	return gw, tempDir
}
