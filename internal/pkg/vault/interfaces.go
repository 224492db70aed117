package vault

import (
	"context"

	vault "github.com/hashicorp/vault/api"
)

type AuthAPI interface {
	Login(ctx context.Context, authMethod vault.AuthMethod) (*vault.Secret, error)
}

type LogicalAPI interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

type TokenAPI interface {
	RevokeSelfWithContext(ctx context.Context, token string) error
}

type VaultAPI interface {
	Logical() LogicalAPI
	Auth() AuthAPI
	TokenAuth() TokenAPI
	Token() string
}

type vaultAPIWrapper struct {
	*vault.Client
}

func (w *vaultAPIWrapper) Logical() LogicalAPI { return w.Client.Logical() }
func (w *vaultAPIWrapper) Auth() AuthAPI       { return w.Client.Auth() }
func (w *vaultAPIWrapper) TokenAuth() TokenAPI { return w.Client.Auth().Token() }

var _ VaultAPI = (*vaultAPIWrapper)(nil)

var _ AuthAPI = (*vault.Auth)(nil)
var _ LogicalAPI = (*vault.Logical)(nil)
var _ TokenAPI = (*vault.TokenAuth)(nil)
