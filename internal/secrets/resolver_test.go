package secrets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock Provider ---

type mockProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (m *mockProvider) GetSecret(_ context.Context, id string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.secrets[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("secret not found: %s", id)
}

// --- Tests ---

func TestResolve_StaticKeyWins(t *testing.T) {
	mock := &mockProvider{}
	r := NewCredentialResolver(zap.NewNop(), mock)

	key, err := r.Resolve(context.Background(), "env-key", "prod/fred")
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
	assert.Zero(t, mock.calls, "provider must not be called when a static key is set")
}

func TestResolve_NoCredential(t *testing.T) {
	mock := &mockProvider{}
	r := NewCredentialResolver(zap.NewNop(), mock)

	_, err := r.Resolve(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Zero(t, mock.calls)
}

func TestResolve_FromSecret(t *testing.T) {
	mock := &mockProvider{secrets: map[string]map[string]string{
		"prod/fred": {"api_key": "secret-key"},
	}}
	r := NewCredentialResolver(zap.NewNop(), mock)

	key, err := r.Resolve(context.Background(), "", "prod/fred")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", key)
	assert.Equal(t, 1, mock.calls)
}

func TestResolve_FieldFallbacks(t *testing.T) {
	mock := &mockProvider{secrets: map[string]map[string]string{
		"a": {"FRED_API_KEY": "k1"},
		"b": {"value": "k2"},
		"c": {"username": "nobody"},
	}}
	r := NewCredentialResolver(zap.NewNop(), mock)

	key, err := r.Resolve(context.Background(), "", "a")
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	key, err = r.Resolve(context.Background(), "", "b")
	require.NoError(t, err)
	assert.Equal(t, "k2", key)

	_, err = r.Resolve(context.Background(), "", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no api key field")
}

func TestResolve_ProviderErrors(t *testing.T) {
	boom := errors.New("access denied")
	r := NewCredentialResolver(zap.NewNop(), &mockProvider{err: boom})

	_, err := r.Resolve(context.Background(), "", "prod/fred")
	assert.ErrorIs(t, err, boom)

	r = NewCredentialResolver(zap.NewNop(), nil)
	_, err = r.Resolve(context.Background(), "", "prod/fred")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no secrets provider")
}
