// Package credentials provides bearer-token sources for authenticated API calls.
package credentials

import (
	"context"
	"os"
	"strings"
)

// TokenKey is the storage key the login flow writes the bearer token under.
const TokenKey = "token"

// Provider returns the current bearer token. An empty token with a nil error
// means the user is not logged in.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Token implements Provider.
func (f ProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static returns a provider that always yields token.
func Static(token string) Provider {
	return ProviderFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(token), nil
	})
}

// Env returns a provider reading the token from an environment variable on every call.
func Env(name string) Provider {
	return ProviderFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	})
}
