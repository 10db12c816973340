package secrets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/plumbing-feed/pkg/secrets"
	"github.com/Checker-Finance/plumbing-feed/pkg/utils"
)

// ErrNoCredential means neither a static key nor a secret id was supplied.
var ErrNoCredential = errors.New("no credential configured")

// credentialFields are the secret fields checked, in order, for the API key.
var credentialFields = []string{"api_key", "FRED_API_KEY", "value"}

// CredentialResolver resolves an API key either from static configuration or
// from a secrets manager.
type CredentialResolver struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
}

// NewCredentialResolver constructs a resolver. provider may be nil when only
// static keys are used.
func NewCredentialResolver(logger *zap.Logger, provider pkgsecrets.Provider) *CredentialResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialResolver{
		logger:   logger,
		provider: provider,
	}
}

// Resolve returns staticKey when set; otherwise it reads secretID from the provider.
func (r *CredentialResolver) Resolve(ctx context.Context, staticKey, secretID string) (string, error) {
	if staticKey != "" {
		return staticKey, nil
	}
	if secretID == "" {
		return "", ErrNoCredential
	}

	if r.provider == nil {
		return "", fmt.Errorf("resolve secret %q: no secrets provider configured", secretID)
	}

	secretMap, err := r.provider.GetSecret(ctx, secretID)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("secret_id", secretID),
			zap.Error(err))
		return "", fmt.Errorf("resolve secret %q: %w", secretID, err)
	}

	var key string
	for _, field := range credentialFields {
		if v := secretMap[field]; v != "" {
			key = v
			break
		}
	}
	if key == "" {
		return "", fmt.Errorf("resolve secret %q: no api key field (tried %v)", secretID, credentialFields)
	}

	r.logger.Info("secrets.credential_resolved",
		zap.String("secret_id", secretID),
		zap.String("key", utils.MaskSecret(key)))
	return key, nil
}
