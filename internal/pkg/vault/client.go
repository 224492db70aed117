// Package vault loads job secrets from a HashiCorp Vault KV mount.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	vault "github.com/hashicorp/vault/api"
	auth "github.com/hashicorp/vault/api/auth/kubernetes"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/retry"
)

const (
	DefaultK8sAuthPath  = "kubernetes"
	DefaultK8sTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
	DefaultTimeout      = 30 * time.Second
)

type Client struct {
	vaultClient VaultAPI
	revokeToken bool
	retryConfig retry.Config
}

type Config struct {
	Address    string
	Token      string
	Namespace  string
	Timeout    time.Duration
	CACert     string
	SecretPath string
	// RevokeToken revokes the client token once secrets are read.
	RevokeToken bool
	// Kubernetes auth config
	K8sAuthEnabled bool
	K8sAuthPath    string
	K8sTokenPath   string
	K8sRole        string
}

var vaultNewClientFunc = vault.NewClient

func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address

	if config.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{CACert: config.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vaultNewClientFunc(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize Vault client: %w", err)
	}
	client.SetClientTimeout(timeout)

	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	if config.K8sAuthEnabled {
		mountPath := config.K8sAuthPath
		if mountPath == "" {
			mountPath = DefaultK8sAuthPath
		}
		tokenPath := config.K8sTokenPath
		if tokenPath == "" {
			tokenPath = DefaultK8sTokenPath
		}
		k8sAuth, err := auth.NewKubernetesAuth(
			config.K8sRole,
			auth.WithMountPath(mountPath),
			auth.WithServiceAccountTokenPath(tokenPath),
		)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize Kubernetes auth method: %w", err)
		}

		authInfo, err := client.Auth().Login(loginCtx, k8sAuth)
		if err != nil {
			return nil, fmt.Errorf("unable to log in with Kubernetes auth: %w", err)
		}
		if authInfo == nil {
			return nil, fmt.Errorf("no auth info was returned after login")
		}
		log.Debug().Str("component", "vault").Str("role", config.K8sRole).Msg("Authenticated with Kubernetes auth")
	} else {
		if config.Token == "" {
			return nil, fmt.Errorf("vault token is required when Kubernetes auth is disabled")
		}
		client.SetToken(config.Token)
	}

	return newClientWithAPI(&vaultAPIWrapper{client}, config.RevokeToken), nil
}

func newClientWithAPI(api VaultAPI, revokeToken bool) *Client {
	return &Client{vaultClient: api, revokeToken: revokeToken, retryConfig: retry.AccessCheck}
}

// isTransientVaultError reports network timeouts, dropped connections,
// rate limiting and server side failures.
func isTransientVaultError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var respErr *vault.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode >= 500 || respErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
