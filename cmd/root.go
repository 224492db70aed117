package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/d4rkfella/db-backup/internal/config"
	"github.com/d4rkfella/db-backup/internal/logging"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "db-backup",
	Short:         "Dump a PostgreSQL database and keep a rolling set of archives in Google Drive or S3",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(viper.GetString("log_level"))
		setupSystemResources(viper.GetFloat64("memory_limit_ratio"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the command tree. The caller maps the returned error to an
// exit code; see ExitCode.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.db-backup.yaml)")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	// Database
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("dump-command", "pg_dump", "Dump program; pg_dump gets tar format and --dbname, anything else gets DATABASE_URL in its environment")
	flags.StringSlice("dump-args", nil, "Extra arguments for the dump program")
	flags.String("temp-dir", "", "Directory for the local artifact (default is the system temp dir)")
	flags.String("file-prefix", "backup-", "Artifact file name prefix")

	// Storage
	flags.String("storage-backend", config.BackendDrive, "Remote store: drive or s3")
	flags.String("folder-id", "", "Drive folder ID or S3 key prefix")
	flags.Int("page-size", storage.DefaultPageSize, "Maximum records inspected per retention pass")
	flags.String("drive-credentials-file", "", "Google service account JSON key file")
	flags.String("drive-credentials-json", "", "Google service account JSON key")
	flags.String("drive-impersonate", "", "User to impersonate with domain-wide delegation")
	flags.String("s3-bucket", "", "S3 bucket name")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("s3-endpoint", "", "S3 endpoint URL for S3-compatible storage")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-session-token", "", "S3 session token")

	// Job behaviour
	flags.String("retention", "disabled", "Delete remote archives older than one unit: disabled, hour, day, week, month, year")
	flags.Bool("secure-delete", false, "Overwrite the local artifact before removing it")
	flags.Bool("upload-failure-fatal", false, "Fail the run when the upload fails")
	flags.Float64("memory-limit-ratio", 0.85, "Share of the memory limit to use as GOMEMLIMIT")
	flags.Duration("run-timeout", 0, "Abort the run after this long (0 disables)")

	// Notifications
	flags.String("pushover-api-key", "", "Pushover API key")
	flags.String("pushover-user-key", "", "Pushover user key")

	// Vault
	flags.String("vault-address", "", "Vault server address")
	flags.String("vault-token", "", "Vault token")
	flags.String("vault-namespace", "", "Vault namespace")
	flags.String("vault-secret-path", "", "KV path holding secrets; enables Vault lookup when set")
	flags.Bool("vault-revoke-token", false, "Revoke the Vault token after reading secrets (leave off for long-lived static tokens)")
	flags.Bool("vault-k8s-auth-enabled", false, "Use Vault Kubernetes auth")
	flags.String("vault-k8s-role", "", "Vault Kubernetes auth role")
	flags.String("vault-k8s-auth-path", "kubernetes", "Vault Kubernetes auth mount path")
	flags.String("vault-k8s-token-path", "", "Kubernetes service account token path")
	flags.Duration("vault-timeout", 30*time.Second, "Vault client timeout")
	flags.String("vault-ca-cert", "", "CA certificate for Vault TLS")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".db-backup")
	}

	config.SetDefaults(viper.GetViper())
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if unbound := bindFlags(rootCmd); len(unbound) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration keys without a flag:", strings.Join(unbound, ", "))
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds every configuration key to its persistent flag, so
// --s3-bucket, S3_BUCKET and s3_bucket in the config file all set one value.
// It returns the keys that have no flag.
func bindFlags(cmd *cobra.Command) []string {
	var unbound []string
	for _, key := range config.Keys {
		f := cmd.PersistentFlags().Lookup(flagName(key))
		if f == nil {
			unbound = append(unbound, key)
			continue
		}
		_ = viper.BindPFlag(key, f)
	}
	return unbound
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
