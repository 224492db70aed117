package vault

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d4rkfella/db-backup/internal/retry"
)

type mockVaultAPI struct {
	logical *mockLogicalAPI
	token   *mockTokenAPI
}

func (m *mockVaultAPI) Logical() LogicalAPI { return m.logical }
func (m *mockVaultAPI) Auth() AuthAPI       { return &mockAuthAPI{} }
func (m *mockVaultAPI) TokenAuth() TokenAPI { return m.token }
func (m *mockVaultAPI) Token() string       { return "mock-token" }

type mockLogicalAPI struct {
	ReadFunc func(ctx context.Context, path string) (*vault.Secret, error)

	readPath string
}

func (m *mockLogicalAPI) ReadWithContext(ctx context.Context, path string) (*vault.Secret, error) {
	m.readPath = path
	return m.ReadFunc(ctx, path)
}

type mockTokenAPI struct {
	err     error
	revoked int
}

func (m *mockTokenAPI) RevokeSelfWithContext(_ context.Context, _ string) error {
	m.revoked++
	return m.err
}

type mockAuthAPI struct{}

func (m *mockAuthAPI) Login(_ context.Context, _ vault.AuthMethod) (*vault.Secret, error) {
	return &vault.Secret{Auth: &vault.SecretAuth{ClientToken: "mock-k8s-token"}}, nil
}

func newMock(secret *vault.Secret, err error) *mockVaultAPI {
	return &mockVaultAPI{
		logical: &mockLogicalAPI{ReadFunc: func(context.Context, string) (*vault.Secret, error) {
			return secret, err
		}},
		token: &mockTokenAPI{},
	}
}

func TestReadSecrets(t *testing.T) {
	ctx := context.Background()

	t.Run("kv v1", func(t *testing.T) {
		api := newMock(&vault.Secret{Data: map[string]interface{}{
			"database_url": "postgres://app:pw@db/prod",
			"ttl":          3600,
		}}, nil)

		got, err := newClientWithAPI(api, false).ReadSecrets(ctx, "/secret/db-backup/")

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"database_url": "postgres://app:pw@db/prod"}, got)
		assert.Equal(t, "secret/db-backup", api.logical.readPath)
		assert.Zero(t, api.token.revoked)
	})

	t.Run("kv v2 envelope", func(t *testing.T) {
		api := newMock(&vault.Secret{Data: map[string]interface{}{
			"data":     map[string]interface{}{"s3_secret_key": "abc"},
			"metadata": map[string]interface{}{"version": 3},
		}}, nil)

		got, err := newClientWithAPI(api, true).ReadSecrets(ctx, "secret/data/db-backup")

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"s3_secret_key": "abc"}, got)
		assert.Equal(t, 1, api.token.revoked)
	})

	t.Run("kv v1 with a key named data", func(t *testing.T) {
		api := newMock(&vault.Secret{Data: map[string]interface{}{
			"data": map[string]interface{}{"x": "y"},
			"user": "app",
		}}, nil)

		got, err := newClientWithAPI(api, false).ReadSecrets(ctx, "kv/app")

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"user": "app"}, got)
	})

	t.Run("missing secret", func(t *testing.T) {
		api := newMock(nil, nil)

		_, err := newClientWithAPI(api, true).ReadSecrets(ctx, "secret/missing")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no secret found")
		assert.Equal(t, 1, api.token.revoked)
	})

	t.Run("read failure", func(t *testing.T) {
		api := newMock(nil, errors.New("permission denied"))

		_, err := newClientWithAPI(api, false).ReadSecrets(ctx, "secret/db")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("revoke failure is not fatal", func(t *testing.T) {
		api := newMock(&vault.Secret{Data: map[string]interface{}{"k": "v"}}, nil)
		api.token.err = errors.New("revoke failed")

		got, err := newClientWithAPI(api, true).ReadSecrets(ctx, "secret/db")

		require.NoError(t, err)
		assert.Equal(t, "v", got["k"])
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		calls := 0
		api := &mockVaultAPI{
			logical: &mockLogicalAPI{ReadFunc: func(context.Context, string) (*vault.Secret, error) {
				calls++
				if calls == 1 {
					return nil, &vault.ResponseError{StatusCode: http.StatusServiceUnavailable}
				}
				return &vault.Secret{Data: map[string]interface{}{"k": "v"}}, nil
			}},
			token: &mockTokenAPI{},
		}
		client := newClientWithAPI(api, false)
		client.retryConfig = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

		got, err := client.ReadSecrets(ctx, "secret/db")

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, "v", got["k"])
	})

	t.Run("forbidden is not retried", func(t *testing.T) {
		calls := 0
		api := &mockVaultAPI{
			logical: &mockLogicalAPI{ReadFunc: func(context.Context, string) (*vault.Secret, error) {
				calls++
				return nil, &vault.ResponseError{StatusCode: http.StatusForbidden}
			}},
			token: &mockTokenAPI{},
		}
		client := newClientWithAPI(api, false)
		client.retryConfig = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

		_, err := client.ReadSecrets(ctx, "secret/db")

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := newClientWithAPI(newMock(nil, nil), false).ReadSecrets(ctx, "/")
		assert.Error(t, err)
	})
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("missing address", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Token: "t"})
		assert.ErrorContains(t, err, "address")
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := NewClient(ctx, &Config{Address: "http://127.0.0.1:8200"})
		assert.ErrorContains(t, err, "token is required")
	})

	t.Run("token auth", func(t *testing.T) {
		var captured *vault.Client
		orig := vaultNewClientFunc
		defer func() { vaultNewClientFunc = orig }()
		vaultNewClientFunc = func(c *vault.Config) (*vault.Client, error) {
			vc, err := orig(c)
			captured = vc
			return vc, err
		}

		client, err := NewClient(ctx, &Config{
			Address:   "http://127.0.0.1:8200",
			Token:     "s.test",
			Namespace: "team-a",
			Timeout:   5 * time.Second,
		})

		require.NoError(t, err)
		require.NotNil(t, client)
		require.NotNil(t, captured)
		assert.Equal(t, "s.test", captured.Token())
		assert.Equal(t, "team-a", captured.Namespace())
	})

	t.Run("client construction failure", func(t *testing.T) {
		orig := vaultNewClientFunc
		defer func() { vaultNewClientFunc = orig }()
		vaultNewClientFunc = func(*vault.Config) (*vault.Client, error) {
			return nil, errors.New("boom")
		}

		_, err := NewClient(ctx, &Config{Address: "http://127.0.0.1:8200", Token: "t"})

		assert.ErrorContains(t, err, "unable to initialize Vault client")
	})
}
