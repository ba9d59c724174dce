package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/course-payments/internal/config"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSecret(t *testing.T, base, path, content string) {
	t.Helper()
	full := filepath.Join(base, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o700))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func TestLocalSecretManager_PlainAndJSON(t *testing.T) {
	base := t.TempDir()
	writeSecret(t, base, "gateway/secret-key", "FLWSECK_TEST-123\n")
	writeSecret(t, base, "gateway/webhook-hash", `{"value":"hook","tags":{"owner":"payments"},"created_at":"2026-01-02T00:00:00Z"}`)

	m := NewLocalSecretManager(base, zap.NewNop())

	plain, err := m.GetSecret(context.Background(), "gateway/secret-key")
	require.NoError(t, err)
	assert.Equal(t, "FLWSECK_TEST-123", plain.Value)

	structured, err := m.GetSecretVersion(context.Background(), "gateway/webhook-hash", "v7")
	require.NoError(t, err)
	assert.Equal(t, "hook", structured.Value)
	assert.Equal(t, "payments", structured.Metadata["owner"])
	assert.Equal(t, "2026-01-02T00:00:00Z", structured.CreatedAt)
}

func TestLocalSecretManager_Errors(t *testing.T) {
	base := t.TempDir()
	writeSecret(t, base, "empty", "  \n")
	m := NewLocalSecretManager(base, zap.NewNop())

	_, err := m.GetSecret(context.Background(), "missing")
	assert.ErrorContains(t, err, "secret not found")

	_, err = m.GetSecret(context.Background(), "empty")
	assert.ErrorContains(t, err, "empty")

	_, err = m.GetSecret(context.Background(), "../outside")
	assert.ErrorContains(t, err, "escapes base path")
}

type fakeAWS struct {
	calls  int
	output *secretsmanager.GetSecretValueOutput
	err    error
	last   *secretsmanager.GetSecretValueInput
}

func (f *fakeAWS) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	f.last = in
	return f.output, f.err
}

func TestAWSSecretsManager_CachesCurrentVersion(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeAWS{output: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("sk"),
		VersionId:    aws.String("v-1"),
		CreatedDate:  &created,
		ARN:          aws.String("arn:aws:secretsmanager:x"),
		Name:         aws.String("course-payments/gateway/secret-key"),
	}}
	m := newAWSSecretsManager(client, DefaultAWSSecretsManagerConfig("us-east-1"), zap.NewNop())

	for i := 0; i < 3; i++ {
		secret, err := m.GetSecret(context.Background(), "course-payments/gateway/secret-key")
		require.NoError(t, err)
		assert.Equal(t, "sk", secret.Value)
		assert.Equal(t, "v-1", secret.Version)
		assert.Equal(t, "2026-03-01T00:00:00Z", secret.CreatedAt)
		assert.Equal(t, "arn:aws:secretsmanager:x", secret.Metadata["arn"])
	}
	assert.Equal(t, 1, client.calls)
}

func TestAWSSecretsManager_VersionBypassesCache(t *testing.T) {
	client := &fakeAWS{output: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("old-hash"),
		VersionId:    aws.String("v-0"),
	}}
	m := newAWSSecretsManager(client, DefaultAWSSecretsManagerConfig("us-east-1"), zap.NewNop())

	_, err := m.GetSecretVersion(context.Background(), "hash", "v-0")
	require.NoError(t, err)
	_, err = m.GetSecretVersion(context.Background(), "hash", "v-0")
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "v-0", aws.ToString(client.last.VersionId))
}

func TestAWSSecretsManager_Errors(t *testing.T) {
	m := newAWSSecretsManager(&fakeAWS{err: errors.New("access denied")}, DefaultAWSSecretsManagerConfig("us-east-1"), zap.NewNop())
	_, err := m.GetSecret(context.Background(), "k")
	assert.ErrorContains(t, err, "access denied")

	binary := newAWSSecretsManager(&fakeAWS{output: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte{1}}},
		DefaultAWSSecretsManagerConfig("us-east-1"), zap.NewNop())
	_, err = binary.GetSecret(context.Background(), "k")
	assert.ErrorContains(t, err, "no string value")
}

type fakeLogical struct {
	paths  []string
	data   map[string][]string
	secret *vault.Secret
	err    error
}

func (f *fakeLogical) ReadWithContext(_ context.Context, path string) (*vault.Secret, error) {
	f.paths = append(f.paths, path)
	return f.secret, f.err
}

func (f *fakeLogical) ReadWithDataWithContext(_ context.Context, path string, data map[string][]string) (*vault.Secret, error) {
	f.paths = append(f.paths, path)
	f.data = data
	return f.secret, f.err
}

func kvV2(data map[string]interface{}, version string) *vault.Secret {
	return &vault.Secret{Data: map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"version":      json.Number(version),
			"created_time": "2026-02-01T00:00:00Z",
		},
	}}
}

func TestVaultAdapter_KVv2(t *testing.T) {
	logical := &fakeLogical{secret: kvV2(map[string]interface{}{"value": "sk", "owner": "payments"}, "4")}
	a := newVaultAdapter(logical, DefaultVaultConfig("http://vault:8200"), zap.NewNop())

	secret, err := a.GetSecret(context.Background(), "course-payments/gateway/secret-key")
	require.NoError(t, err)
	assert.Equal(t, "sk", secret.Value)
	assert.Equal(t, "4", secret.Version)
	assert.Equal(t, "payments", secret.Metadata["owner"])
	assert.Equal(t, []string{"secret/data/course-payments/gateway/secret-key"}, logical.paths)

	_, err = a.GetSecret(context.Background(), "course-payments/gateway/secret-key")
	require.NoError(t, err)
	assert.Len(t, logical.paths, 1, "second read is served from cache")

	_, err = a.GetSecretVersion(context.Background(), "course-payments/gateway/secret-key", "3")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"version": {"3"}}, logical.data)
}

func TestVaultAdapter_KVv1SingleField(t *testing.T) {
	cfg := DefaultVaultConfig("http://vault:8200")
	cfg.KVVersion = "v1"
	logical := &fakeLogical{secret: &vault.Secret{Data: map[string]interface{}{"hash": "hook"}}}
	a := newVaultAdapter(logical, cfg, zap.NewNop())

	secret, err := a.GetSecret(context.Background(), "gateway")
	require.NoError(t, err)
	assert.Equal(t, "hook", secret.Value)
	assert.Equal(t, []string{"secret/gateway"}, logical.paths)

	_, err = a.GetSecretVersion(context.Background(), "gateway", "2")
	assert.ErrorContains(t, err, "requires KV v2")
}

func TestVaultAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		logical *fakeLogical
		wantErr string
	}{
		{name: "read failure", logical: &fakeLogical{err: errors.New("sealed")}, wantErr: "sealed"},
		{name: "missing", logical: &fakeLogical{}, wantErr: "secret not found"},
		{name: "bad shape", logical: &fakeLogical{secret: &vault.Secret{Data: map[string]interface{}{"data": "x"}}}, wantErr: "invalid secret format"},
		{name: "ambiguous", logical: &fakeLogical{secret: kvV2(map[string]interface{}{"a": "1", "b": "2"}, "1")}, wantErr: "empty or not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newVaultAdapter(tt.logical, DefaultVaultConfig("http://vault:8200"), zap.NewNop())
			_, err := a.GetSecret(context.Background(), "p")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSecretCache_Expires(t *testing.T) {
	c := newSecretCache(true, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.set("k", &ports.Secret{Value: "v"})
	assert.NotNil(t, c.get("k"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.get("k"))

	disabled := newSecretCache(false, time.Minute)
	disabled.set("k", &ports.Secret{Value: "v"})
	assert.Nil(t, disabled.get("k"))
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(context.Background(), config.SecretsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewStore(context.Background(), config.SecretsConfig{Manager: config.SecretManagerLocal, LocalBasePath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalSecretManager{}, store)

	_, err = NewStore(context.Background(), config.SecretsConfig{Manager: "gcp"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported")
}

func TestResolveGatewaySecrets(t *testing.T) {
	base := t.TempDir()
	writeSecret(t, base, "gw/key", "from-store-key")
	writeSecret(t, base, "gw/hash", "from-store-hash")
	store := NewLocalSecretManager(base, zap.NewNop())

	gw := &config.GatewayConfig{SecretKey: "from-env", SecretKeyPath: "gw/key", WebhookHashPath: "gw/hash"}
	require.NoError(t, ResolveGatewaySecrets(context.Background(), store, gw, zap.NewNop()))
	assert.Equal(t, "from-env", gw.SecretKey)
	assert.Equal(t, "from-store-hash", gw.WebhookHash)

	missing := &config.GatewayConfig{SecretKeyPath: "gw/none"}
	err := ResolveGatewaySecrets(context.Background(), store, missing, zap.NewNop())
	assert.ErrorContains(t, err, "gateway secret key")

	untouched := &config.GatewayConfig{}
	require.NoError(t, ResolveGatewaySecrets(context.Background(), nil, untouched, zap.NewNop()))
	assert.Empty(t, untouched.SecretKey)
}
