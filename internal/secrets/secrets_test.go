package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	values map[string]string
	calls  int
}

func (f *fakeFetcher) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.calls++
	value, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, errors.New("SecretNotFound")
	}
	var resp azsecrets.GetSecretResponse
	resp.Value = &value
	return resp, nil
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, "development"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, ""))
	assert.Equal(t, SourceVault, ResolveSource(SourceAuto, "production"))
	assert.Equal(t, SourceVault, ResolveSource(SourceVault, "development"))
}

func TestProvider_EnvironmentSource(t *testing.T) {
	t.Setenv("FINANCE_TEST_SECRET", "s3cret")

	p, err := NewProvider(&ProviderConfig{Source: SourceEnvironment}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsVaultEnabled())

	value, err := p.GetSecret(context.Background(), "FINANCE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	_, err = p.GetSecret(context.Background(), "FINANCE_TEST_MISSING")
	assert.Error(t, err)
}

func TestProvider_GetSecretOrEnvPrefersEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	p := &Provider{source: SourceVault, logger: zap.NewNop()}

	value, err := p.GetSecretOrEnv(context.Background(), "jwt-signing-secret", "JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestVaultClient_CachesUntilExpiry(t *testing.T) {
	f := &fakeFetcher{values: map[string]string{"admin-api-key": "key-1"}}
	now := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	v := newVaultClient(f, &VaultConfig{VaultName: "kv", CacheEnabled: true, CacheTTL: time.Minute}, zap.NewNop())
	v.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		value, err := v.GetSecret(context.Background(), "admin-api-key")
		require.NoError(t, err)
		assert.Equal(t, "key-1", value)
	}
	assert.Equal(t, 1, f.calls)

	now = now.Add(2 * time.Minute)
	_, err := v.GetSecret(context.Background(), "admin-api-key")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)

	v.ClearCache()
	_, err = v.GetSecret(context.Background(), "admin-api-key")
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
}

func TestVaultClient_MissingSecret(t *testing.T) {
	v := newVaultClient(&fakeFetcher{values: map[string]string{}}, &VaultConfig{VaultName: "kv"}, zap.NewNop())

	_, err := v.GetSecret(context.Background(), "nope")
	assert.ErrorContains(t, err, "nope")
}
