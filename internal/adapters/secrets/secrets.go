// Package secrets resolves gateway credentials from a secret manager.
package secrets

import (
	"context"
	"fmt"

	"github.com/kevin07696/course-payments/internal/config"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"go.uber.org/zap"
)

// NewStore builds the secret store selected by cfg.Manager. It returns
// nil when no manager is configured.
func NewStore(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretStore, error) {
	switch cfg.Manager {
	case config.SecretManagerNone:
		return nil, nil

	case config.SecretManagerLocal:
		logger.Warn("Using local filesystem secret manager, not for production use",
			zap.String("base_path", cfg.LocalBasePath),
		)
		return NewLocalSecretManager(cfg.LocalBasePath, logger), nil

	case config.SecretManagerAWS:
		awsCfg := DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		awsCfg.CacheTTL = cfg.CacheTTL
		store, err := NewAWSSecretsManager(ctx, awsCfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.SecretManagerVault:
		vaultCfg := DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.AuthMethod = cfg.VaultAuth
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.RoleID = cfg.VaultRoleID
		vaultCfg.SecretID = cfg.VaultSecretID
		vaultCfg.MountPath = cfg.VaultMountPath
		vaultCfg.CacheTTL = cfg.CacheTTL
		store, err := NewVaultAdapter(ctx, vaultCfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported secret manager %q", cfg.Manager)
	}
}

// ResolveGatewaySecrets fills the gateway secret key and webhook hash from
// store. Values already set in the environment win. A nil store leaves
// gw untouched.
func ResolveGatewaySecrets(ctx context.Context, store ports.SecretStore, gw *config.GatewayConfig, logger *zap.Logger) error {
	if store == nil {
		return nil
	}

	targets := []struct {
		name  string
		path  string
		value *string
	}{
		{name: "gateway secret key", path: gw.SecretKeyPath, value: &gw.SecretKey},
		{name: "gateway webhook hash", path: gw.WebhookHashPath, value: &gw.WebhookHash},
	}

	for _, t := range targets {
		if *t.value != "" {
			continue
		}
		secret, err := store.GetSecret(ctx, t.path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", t.name, err)
		}
		*t.value = secret.Value
		logger.Info("Resolved secret",
			zap.String("secret", t.name),
			zap.String("path", t.path),
			zap.String("version", secret.Version),
		)
	}
	return nil
}
