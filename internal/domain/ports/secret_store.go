package ports

import "context"

// Secret is a resolved secret value with its version metadata
type Secret struct {
	Value     string
	Version   string
	Metadata  map[string]string
	CreatedAt string
}

// SecretStore reads secrets from a secret management backend.
// Implementations: local filesystem, AWS Secrets Manager, HashiCorp Vault.
type SecretStore interface {
	// GetSecret returns the current version of the secret at path
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion returns a specific version, used while a rotated
	// webhook hash is still being delivered under its previous value
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
