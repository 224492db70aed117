package vault

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/retry"
)

// ReadSecrets reads the secret at path and returns its string values.
// KV version 2 responses are unwrapped from their "data" envelope.
// Non-string values are skipped.
func (c *Client) ReadSecrets(ctx context.Context, path string) (map[string]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("secret path cannot be empty")
	}

	logger := log.With().Str("component", "vault").Str("path", path).Logger()
	defer c.revoke(ctx)

	var secret *vault.Secret
	err := retry.Do(ctx, c.retryConfig, "vault secret read", func(opCtx context.Context) error {
		var readErr error
		secret, readErr = c.vaultClient.Logical().ReadWithContext(opCtx, path)
		return readErr
	}, isTransientVaultError)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret found at %s", path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		if _, hasMeta := data["metadata"]; hasMeta {
			data = nested
		}
	}

	values := make(map[string]string, len(data))
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			logger.Warn().Str("key", k).Msg("Ignoring non-string secret value")
			continue
		}
		values[k] = s
	}
	logger.Info().Int("keys", len(values)).Msg("Loaded secrets from Vault")
	return values, nil
}

func (c *Client) revoke(ctx context.Context) {
	if !c.revokeToken {
		return
	}
	if err := c.vaultClient.TokenAuth().RevokeSelfWithContext(ctx, ""); err != nil {
		log.Warn().Err(err).Str("component", "vault").Msg("Failed to revoke Vault token")
		return
	}
	log.Debug().Str("component", "vault").Msg("Vault token revoked")
}
