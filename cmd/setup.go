package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/d4rkfella/db-backup/internal/app"
	"github.com/d4rkfella/db-backup/internal/config"
	"github.com/d4rkfella/db-backup/internal/pkg/drive"
	"github.com/d4rkfella/db-backup/internal/pkg/dump"
	"github.com/d4rkfella/db-backup/internal/pkg/notify"
	"github.com/d4rkfella/db-backup/internal/pkg/retention"
	"github.com/d4rkfella/db-backup/internal/pkg/s3"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/pkg/vault"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion records build information for logs.
func SetVersion(v, c string) {
	version, commit = v, c
}

// Seams replaced in tests.
var (
	newGateway  = buildGateway
	loadSecrets = readVaultSecrets
)

// loadConfig reads configuration, merges Vault secrets and validates the
// result. Validation failures are returned as *ValidationError.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		var fe *config.FieldError
		if errors.As(err, &fe) {
			return nil, fieldValidationError(fe)
		}
		return nil, err
	}

	if verr := validateVault(cfg); verr != nil {
		return nil, verr
	}
	if cfg.VaultSecretPath != "" {
		secrets, err := loadSecrets(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
		}
		applied := cfg.ApplySecrets(secrets)
		log.Debug().Str("component", "configuration").Strs("keys", applied).Msg("Applied secrets from Vault")
	}

	if verr := validateConfig(cfg); verr != nil {
		return nil, verr
	}
	return cfg, nil
}

func readVaultSecrets(ctx context.Context, cfg *config.Config) (map[string]string, error) {
	client, err := vault.NewClient(ctx, &vault.Config{
		Address:        cfg.VaultAddress,
		Token:          cfg.VaultToken,
		Namespace:      cfg.VaultNamespace,
		Timeout:        cfg.VaultTimeout,
		CACert:         cfg.VaultCACert,
		SecretPath:     cfg.VaultSecretPath,
		RevokeToken:    cfg.VaultRevokeToken,
		K8sAuthEnabled: cfg.VaultK8sAuthEnabled,
		K8sAuthPath:    cfg.VaultK8sAuthPath,
		K8sTokenPath:   cfg.VaultK8sTokenPath,
		K8sRole:        cfg.VaultK8sRole,
	})
	if err != nil {
		return nil, err
	}
	return client.ReadSecrets(ctx, cfg.VaultSecretPath)
}

func buildGateway(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		return s3.NewClient(ctx, &s3.Config{
			AccessKey:       cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			SessionToken:    cfg.S3SessionToken,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
		})
	case config.BackendDrive:
		return drive.NewClient(ctx, &drive.Config{
			CredentialsFile: cfg.DriveCredentialsFile,
			CredentialsJSON: []byte(cfg.DriveCredentialsJSON),
			Subject:         cfg.DriveImpersonate,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newDumper runs pg_dump in tar mode. Any other program receives the
// connection string as DATABASE_URL and must write the dump to stdout.
func newDumper(cfg *config.Config) *dump.Producer {
	if filepath.Base(cfg.DumpCommand) == "pg_dump" {
		p := dump.NewPostgresProducer(cfg.DatabaseURL, cfg.DumpArgs...)
		p.Command = cfg.DumpCommand
		return p
	}
	return &dump.Producer{
		Command: cfg.DumpCommand,
		Args:    cfg.DumpArgs,
		Env:     []string{"DATABASE_URL=" + cfg.DatabaseURL},
	}
}

func newBackup(ctx context.Context, cfg *config.Config) (*app.Backup, error) {
	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.StorageBackend, err)
	}

	var notifier app.Notifier
	if client := notify.NewClient(&notify.Config{APIKey: cfg.PushoverAPIKey, UserKey: cfg.PushoverUserKey}); client != nil {
		notifier = client
	}

	return app.NewBackup(gateway, newDumper(cfg), retention.NewPruner(gateway, cfg.PageSize), notifier, app.Options{
		FolderID:           cfg.FolderID,
		FilePrefix:         cfg.FilePrefix,
		TempDir:            cfg.TempDir,
		Retention:          cfg.Retention,
		UploadFailureFatal: cfg.UploadFailureFatal,
		SecureDelete:       cfg.SecureDelete,
	})
}

// withRunTimeout bounds ctx when timeout is positive.
func withRunTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// setupSystemResources configures GOMEMLIMIT and GOMAXPROCS based on available resources.
func setupSystemResources(ratio float64) {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.85
	}
	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(ratio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to set GOMEMLIMIT automatically")
	} else {
		log.Debug().Str("component", "system").Float64("ratio", ratio).Int64("limit_bytes", limit).Msg("Automatic GOMEMLIMIT activated")
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) { log.Debug().Msgf(s, i...) })); err != nil {
		log.Warn().Err(err).Msg("Failed to set GOMAXPROCS automatically")
	}
	log.Debug().Str("component", "system").Int("gomaxprocs", runtime.GOMAXPROCS(0)).Str("version", version).Str("commit", commit).Msg("System resources configured")
}
