package vaultcreds

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"

	"esg-sync/internal/config"
	"esg-sync/internal/external"
	"esg-sync/pkg/log"
)

// Resolver resolves connector secret references against Vault KV-v2. A secret
// reference has the form "mount/path/to/secret"; the secret's data keys map
// onto the credential fields (token, username, password, api_key).
type Resolver struct {
	client *vault.Client
	logger zerolog.Logger
}

func NewResolver(cfg *config.Vault) (*Resolver, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Resolver{
		client: client,
		logger: log.Logger.With().Str("component", "vault_credential_resolver").Logger(),
	}, nil
}

func (r *Resolver) Resolve(ctx context.Context, secretRef string) (*external.Credential, error) {
	mount, path, err := splitSecretRef(secretRef)
	if err != nil {
		return nil, err
	}

	secret, err := r.client.KVv2(mount).Get(ctx, path)
	if err != nil {
		r.logger.Error().Err(err).Str("secret_ref", secretRef).Msg("Failed to read credential from vault")
		return nil, fmt.Errorf("failed to read credential %q: %w", secretRef, err)
	}

	credential := &external.Credential{
		Token:    stringValue(secret.Data, "token"),
		Username: stringValue(secret.Data, "username"),
		Password: stringValue(secret.Data, "password"),
		APIKey:   stringValue(secret.Data, "api_key"),
	}

	if credential.Token == "" && credential.Username == "" && credential.APIKey == "" {
		return nil, fmt.Errorf("credential %q has no usable fields", secretRef)
	}

	r.logger.Debug().Str("secret_ref", secretRef).Msg("Resolved credential")
	return credential, nil
}

func splitSecretRef(secretRef string) (string, string, error) {
	parts := strings.SplitN(secretRef, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid secret reference %q, expected mount/path", secretRef)
	}
	return parts[0], parts[1], nil
}

func stringValue(data map[string]interface{}, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}
