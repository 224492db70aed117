package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/d4rkfella/db-backup/internal/config"
)

const (
	sectionDatabase      = "Database"
	sectionStorage       = "Storage"
	sectionRetention     = "Retention"
	sectionNotifications = "Notifications"
	sectionVault         = "Vault Authentication"
	sectionGeneral       = "General"
)

var flagPattern = regexp.MustCompile(`--[a-z0-9-]+`)

// validateVault checks the settings needed to reach Vault. It runs before
// secrets are fetched; validateConfig runs after.
func validateVault(cfg *config.Config) *ValidationError {
	err := newValidationError()
	if cfg.VaultSecretPath == "" {
		return nil
	}

	vaultSection := err.section(sectionVault)
	if cfg.VaultAddress == "" {
		vaultSection.Issues = append(vaultSection.Issues, "Missing Vault address (--vault-address)")
	}

	switch {
	case cfg.VaultK8sAuthEnabled:
		if cfg.VaultK8sRole == "" {
			vaultSection.Issues = append(vaultSection.Issues, "Missing Kubernetes Role (--vault-k8s-role) for Vault Auth")
			vaultSection.Solutions = append(vaultSection.Solutions, "Ensure the service account used has appropriate Vault policies.")
		}

	case cfg.VaultToken == "":
		vaultSection.Issues = append(vaultSection.Issues, "Missing Vault Authentication Method (Token or Kubernetes)")
		vaultSection.Solutions = append(vaultSection.Solutions,
			"Choose ONE authentication method:",
			"  - Option 1 (Static Token): Provide --vault-token",
			"  - Option 2 (Kubernetes Auth): Provide BOTH --vault-k8s-auth-enabled AND --vault-k8s-role",
		)
		_, vaultSection.SettingAdvice = generateStandardFixes([]string{
			"--vault-token",
			"--vault-k8s-auth-enabled",
			"--vault-k8s-role",
		})
		return err.orNil()
	}

	addStandardFixes(vaultSection)
	return err.orNil()
}

func validateConfig(cfg *config.Config) *ValidationError {
	err := newValidationError()

	dbSection := err.section(sectionDatabase)
	if cfg.DatabaseURL == "" {
		dbSection.Issues = append(dbSection.Issues, "Missing database connection string (--database-url)")
	}
	addStandardFixes(dbSection)

	storageSection := err.section(sectionStorage)
	if cfg.FolderID == "" {
		storageSection.Issues = append(storageSection.Issues, "Missing destination folder (--folder-id)")
	}
	switch cfg.StorageBackend {
	case config.BackendDrive:
		if cfg.DriveCredentialsFile == "" && cfg.DriveCredentialsJSON == "" {
			storageSection.Issues = append(storageSection.Issues, "Missing Google service account key (--drive-credentials-file or --drive-credentials-json)")
		}
	case config.BackendS3:
		if cfg.S3Bucket == "" {
			storageSection.Issues = append(storageSection.Issues, "Missing S3 Bucket Name (--s3-bucket)")
		}
		if cfg.S3AccessKey != "" && cfg.S3SecretKey == "" {
			storageSection.Issues = append(storageSection.Issues, "Missing S3 Secret Key (--s3-secret-key)")
		}
		if cfg.S3AccessKey == "" && cfg.S3SecretKey != "" {
			storageSection.Issues = append(storageSection.Issues, "Missing S3 Access Key (--s3-access-key)")
		}
	}
	addStandardFixes(storageSection)

	validatePushover(cfg, err.section(sectionNotifications))

	return err.orNil()
}

var (
	pushoverAPIKeyRegex  = regexp.MustCompile(`^a[A-Za-z0-9]{29}$`)
	pushoverUserKeyRegex = regexp.MustCompile(`^u[A-Za-z0-9]{29}$`)
)

func validatePushover(cfg *config.Config, notifySection *ValidationSection) {
	apiKey, userKey := cfg.PushoverAPIKey, cfg.PushoverUserKey

	switch {
	case (apiKey != "") != (userKey != ""):
		notifySection.Issues = append(notifySection.Issues, "Both Pushover keys must be provided if one is set (--pushover-api-key, --pushover-user-key)")
		notifySection.Solutions, notifySection.SettingAdvice = generateStandardFixes([]string{
			"--pushover-api-key",
			"--pushover-user-key",
		})

	case apiKey != "":
		apiKeyValid := pushoverAPIKeyRegex.MatchString(apiKey)
		userKeyValid := pushoverUserKeyRegex.MatchString(userKey)
		if !apiKeyValid {
			notifySection.Issues = append(notifySection.Issues, "Pushover API key format is invalid (--pushover-api-key)")
		}
		if !userKeyValid {
			notifySection.Issues = append(notifySection.Issues, "Pushover User key format is invalid (--pushover-user-key)")
		}
		if !apiKeyValid || !userKeyValid {
			notifySection.Solutions = []string{
				"Pushover API key must start with 'a', User key with 'u'.",
				"Both keys must be exactly 30 alphanumeric characters (A-Z, a-z, 0-9).",
			}
		}
	}
}

// fieldValidationError wraps a malformed value reported by config.Load.
func fieldValidationError(fe *config.FieldError) *ValidationError {
	err := newValidationError()
	flag := "--" + strings.ReplaceAll(fe.Key, "_", "-")
	s := err.section(sectionForKey(fe.Key))
	s.Issues = append(s.Issues, fmt.Sprintf("%s (%s)", fe.Error(), flag))
	addStandardFixes(s)
	return err
}

func sectionForKey(key string) string {
	switch {
	case key == "retention" || key == "page_size":
		return sectionRetention
	case strings.HasPrefix(key, "database_"), strings.HasPrefix(key, "dump_"), key == "temp_dir", key == "file_prefix":
		return sectionDatabase
	case key == "storage_backend", key == "folder_id", strings.HasPrefix(key, "drive_"), strings.HasPrefix(key, "s3_"):
		return sectionStorage
	case strings.HasPrefix(key, "pushover_"):
		return sectionNotifications
	case strings.HasPrefix(key, "vault_"):
		return sectionVault
	default:
		return sectionGeneral
	}
}

func addStandardFixes(section *ValidationSection) {
	if len(section.Issues) == 0 {
		return
	}
	var flagNames []string
	for _, issue := range section.Issues {
		flagNames = append(flagNames, flagPattern.FindAllString(issue, -1)...)
	}
	if len(flagNames) == 0 {
		return
	}
	solutions, advice := generateStandardFixes(flagNames)
	section.Solutions = append(solutions, section.Solutions...)
	section.SettingAdvice = advice
}

func generateStandardFixes(flagNames []string) (solutions []string, settingAdvice []string) {
	solutions = []string{"Provide the required value(s)"}

	var flagsWithValues []string
	for _, flag := range flagNames {
		flagsWithValues = append(flagsWithValues, flag+" VALUE")
	}
	flagList := strings.Join(flagsWithValues, " ")

	var envVars []string
	for _, flag := range flagNames {
		envVar := strings.ToUpper(strings.ReplaceAll(strings.TrimPrefix(flag, "--"), "-", "_"))
		envVars = append(envVars, envVar+"=VALUE")
	}
	envList := strings.Join(envVars, " ")

	settingAdvice = []string{
		fmt.Sprintf("1. Via flags: %s", flagList),
		fmt.Sprintf("2. Via environment variables: %s", envList),
		"3. Via config file (e.g., ~/.db-backup.yaml)",
	}

	return
}
