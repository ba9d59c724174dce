package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/course-payments/internal/domain/ports"
	"go.uber.org/zap"
)

// LocalSecretManager reads secrets from files under a base directory.
// For development only.
type LocalSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger *zap.Logger) *LocalSecretManager {
	return &LocalSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret reads basePath/secretPath. The file holds either the bare value
// or a JSON object {"value", "tags", "created_at"}.
func (m *LocalSecretManager) GetSecret(_ context.Context, secretPath string) (*ports.Secret, error) {
	filePath, err := m.resolve(secretPath)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Reading secret from filesystem", zap.String("path", secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var secretData struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return nil, fmt.Errorf("secret %s is empty", secretPath)
	}
	return &ports.Secret{Value: value, Version: "v1"}, nil
}

// GetSecretVersion returns the only version the filesystem keeps
func (m *LocalSecretManager) GetSecretVersion(ctx context.Context, path string, _ string) (*ports.Secret, error) {
	return m.GetSecret(ctx, path)
}

func (m *LocalSecretManager) resolve(secretPath string) (string, error) {
	filePath := filepath.Join(m.basePath, secretPath)
	rel, err := filepath.Rel(m.basePath, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("secret path %q escapes base path", secretPath)
	}
	return filePath, nil
}
