// Package config turns viper settings into a validated job configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/d4rkfella/db-backup/internal/pkg/retention"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/util"
)

const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

// Keys is every configuration key, as used by viper, env (upper-cased) and
// the config file.
var Keys = []string{
	"log_level", "database_url", "dump_command", "dump_args", "temp_dir", "file_prefix",
	"retention", "storage_backend", "folder_id", "page_size",
	"drive_credentials_file", "drive_credentials_json", "drive_impersonate",
	"s3_bucket", "s3_region", "s3_endpoint", "s3_access_key", "s3_secret_key", "s3_session_token",
	"secure_delete", "upload_failure_fatal", "memory_limit_ratio", "run_timeout",
	"pushover_api_key", "pushover_user_key",
	"vault_address", "vault_token", "vault_namespace", "vault_secret_path", "vault_revoke_token",
	"vault_k8s_auth_enabled", "vault_k8s_role", "vault_k8s_auth_path", "vault_k8s_token_path",
	"vault_timeout", "vault_ca_cert",
}

// SecretKeys lists the keys that may be filled from a Vault secret.
var SecretKeys = []string{
	"database_url", "drive_credentials_json", "s3_access_key", "s3_secret_key",
	"pushover_api_key", "pushover_user_key",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("dump_command", "pg_dump")
	v.SetDefault("file_prefix", "backup-")
	v.SetDefault("retention", "disabled")
	v.SetDefault("storage_backend", BackendDrive)
	v.SetDefault("page_size", storage.DefaultPageSize)
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("memory_limit_ratio", 0.85)
	v.SetDefault("vault_timeout", 30*time.Second)
	v.SetDefault("vault_revoke_token", false)
}

// FieldError reports an invalid value for one configuration key.
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

type Config struct {
	LogLevel    string
	DatabaseURL string
	DumpCommand string
	DumpArgs    []string
	TempDir     string
	FilePrefix  string
	Retention   retention.Policy

	StorageBackend string
	FolderID       string
	PageSize       int

	DriveCredentialsFile string
	DriveCredentialsJSON string
	DriveImpersonate     string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string

	SecureDelete       bool
	UploadFailureFatal bool
	MemoryLimitRatio   float64
	RunTimeout         time.Duration

	PushoverAPIKey  string
	PushoverUserKey string

	VaultAddress        string
	VaultToken          string
	VaultNamespace      string
	VaultSecretPath     string
	VaultRevokeToken    bool
	VaultK8sAuthEnabled bool
	VaultK8sRole        string
	VaultK8sAuthPath    string
	VaultK8sTokenPath   string
	VaultTimeout        time.Duration
	VaultCACert         string
}

// Load reads and checks value formats. Presence of required values is
// checked by the caller once secrets have been applied.
func Load(v *viper.Viper) (*Config, error) {
	policy, err := retention.ParsePolicy(v.GetString("retention"))
	if err != nil {
		return nil, &FieldError{Key: "retention", Err: err}
	}

	cfg := &Config{
		LogLevel:    strings.ToLower(v.GetString("log_level")),
		DatabaseURL: v.GetString("database_url"),
		DumpCommand: v.GetString("dump_command"),
		DumpArgs:    v.GetStringSlice("dump_args"),
		TempDir:     v.GetString("temp_dir"),
		FilePrefix:  v.GetString("file_prefix"),
		Retention:   policy,

		StorageBackend: strings.ToLower(v.GetString("storage_backend")),
		FolderID:       v.GetString("folder_id"),
		PageSize:       v.GetInt("page_size"),

		DriveCredentialsFile: v.GetString("drive_credentials_file"),
		DriveCredentialsJSON: v.GetString("drive_credentials_json"),
		DriveImpersonate:     v.GetString("drive_impersonate"),

		S3Bucket:       v.GetString("s3_bucket"),
		S3Region:       v.GetString("s3_region"),
		S3Endpoint:     v.GetString("s3_endpoint"),
		S3AccessKey:    v.GetString("s3_access_key"),
		S3SecretKey:    v.GetString("s3_secret_key"),
		S3SessionToken: v.GetString("s3_session_token"),

		SecureDelete:       v.GetBool("secure_delete"),
		UploadFailureFatal: v.GetBool("upload_failure_fatal"),
		MemoryLimitRatio:   v.GetFloat64("memory_limit_ratio"),
		RunTimeout:         v.GetDuration("run_timeout"),

		PushoverAPIKey:  v.GetString("pushover_api_key"),
		PushoverUserKey: v.GetString("pushover_user_key"),

		VaultAddress:        v.GetString("vault_address"),
		VaultToken:          v.GetString("vault_token"),
		VaultNamespace:      v.GetString("vault_namespace"),
		VaultSecretPath:     v.GetString("vault_secret_path"),
		VaultRevokeToken:    v.GetBool("vault_revoke_token"),
		VaultK8sAuthEnabled: v.GetBool("vault_k8s_auth_enabled"),
		VaultK8sRole:        v.GetString("vault_k8s_role"),
		VaultK8sAuthPath:    v.GetString("vault_k8s_auth_path"),
		VaultK8sTokenPath:   v.GetString("vault_k8s_token_path"),
		VaultTimeout:        v.GetDuration("vault_timeout"),
		VaultCACert:         v.GetString("vault_ca_cert"),
	}

	if cfg.StorageBackend != BackendDrive && cfg.StorageBackend != BackendS3 {
		return nil, &FieldError{Key: "storage_backend", Err: fmt.Errorf("unknown backend %q (valid: %s, %s)", cfg.StorageBackend, BackendDrive, BackendS3)}
	}
	if cfg.PageSize <= 0 {
		return nil, &FieldError{Key: "page_size", Err: fmt.Errorf("must be positive, got: %d", cfg.PageSize)}
	}
	if cfg.MemoryLimitRatio <= 0 || cfg.MemoryLimitRatio > 1 {
		return nil, &FieldError{Key: "memory_limit_ratio", Err: fmt.Errorf("must be between 0 and 1, got: %f", cfg.MemoryLimitRatio)}
	}
	if cfg.RunTimeout < 0 {
		return nil, &FieldError{Key: "run_timeout", Err: fmt.Errorf("must not be negative, got: %v", cfg.RunTimeout)}
	}
	if strings.ContainsAny(cfg.FilePrefix, `/\`) {
		return nil, &FieldError{Key: "file_prefix", Err: fmt.Errorf("%q must not contain path separators", cfg.FilePrefix)}
	}
	if cfg.VaultAddress != "" && !strings.HasPrefix(cfg.VaultAddress, "http://") && !strings.HasPrefix(cfg.VaultAddress, "https://") {
		return nil, &FieldError{Key: "vault_address", Err: fmt.Errorf("must start with http:// or https://, got: %s", cfg.VaultAddress)}
	}
	if cfg.TempDir != "" {
		if err := checkTempDir(cfg.TempDir); err != nil {
			return nil, &FieldError{Key: "temp_dir", Err: err}
		}
	}

	log.Info().Str("component", "configuration").Msg("Configuration loaded")
	cfg.LogDebug()
	return cfg, nil
}

// ApplySecrets fills empty fields from secret values keyed like the
// configuration keys. Explicit configuration wins. It returns the keys applied.
func (c *Config) ApplySecrets(secrets map[string]string) []string {
	targets := map[string]*string{
		"database_url":           &c.DatabaseURL,
		"drive_credentials_json": &c.DriveCredentialsJSON,
		"s3_access_key":          &c.S3AccessKey,
		"s3_secret_key":          &c.S3SecretKey,
		"pushover_api_key":       &c.PushoverAPIKey,
		"pushover_user_key":      &c.PushoverUserKey,
	}

	var applied []string
	for _, key := range SecretKeys {
		value, ok := secrets[key]
		if !ok || value == "" || *targets[key] != "" {
			continue
		}
		*targets[key] = value
		applied = append(applied, key)
	}
	return applied
}

// LogDebug logs the configuration at debug level with secrets redacted.
func (c *Config) LogDebug() {
	log.Debug().
		Str("component", "configuration").
		Str("database_url", util.RedactURL(c.DatabaseURL)).
		Str("dump_command", c.DumpCommand).
		Str("temp_dir", util.SanitizePath(c.TempDir)).
		Str("file_prefix", c.FilePrefix).
		Str("retention", c.Retention.String()).
		Str("storage_backend", c.StorageBackend).
		Str("folder_id", c.FolderID).
		Int("page_size", c.PageSize).
		Str("drive_credentials_file", util.SanitizePath(c.DriveCredentialsFile)).
		Bool("drive_credentials_json_set", c.DriveCredentialsJSON != "").
		Str("s3_bucket", c.S3Bucket).
		Str("s3_region", c.S3Region).
		Str("s3_endpoint", util.RedactURL(c.S3Endpoint)).
		Str("s3_access_key", util.RedactKey(c.S3AccessKey)).
		Bool("secure_delete", c.SecureDelete).
		Bool("upload_failure_fatal", c.UploadFailureFatal).
		Float64("memory_limit_ratio", c.MemoryLimitRatio).
		Dur("run_timeout", c.RunTimeout).
		Bool("pushover_enabled", c.PushoverAPIKey != "" && c.PushoverUserKey != "").
		Str("vault_address", util.RedactURL(c.VaultAddress)).
		Str("vault_secret_path", util.SanitizePath(c.VaultSecretPath)).
		Bool("vault_k8s_auth_enabled", c.VaultK8sAuthEnabled).
		Msg("Loaded configuration details (debug)")
}

// checkTempDir verifies that path exists and is a writable directory.
func checkTempDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory '%s' does not exist", path)
		}
		return fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("'%s' is not a directory", path)
	}

	f, err := os.CreateTemp(path, ".db-backup-writetest-*")
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("directory '%s' is not writable: permission denied", path)
		}
		return fmt.Errorf("failed to perform write test in '%s': %w", path, err)
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return nil
}
