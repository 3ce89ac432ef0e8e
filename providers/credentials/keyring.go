package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/childreth/Olly/providers/ai"
)

// DefaultKeyringService is the service name entries are filed under.
const DefaultKeyringService = "olly"

// KeyringTier keeps secrets in the platform secret manager (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager).
type KeyringTier struct {
	service string
}

var _ Tier = (*KeyringTier)(nil)

// NewKeyringTier creates a keyring tier for service. An empty service uses
// DefaultKeyringService.
func NewKeyringTier(service string) *KeyringTier {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringTier{service: service}
}

// Name implements Tier.
func (k *KeyringTier) Name() string { return TierKeyring }

// Service returns the keyring service name.
func (k *KeyringTier) Service() string { return k.service }

// Get implements Tier.
func (k *KeyringTier) Get(_ context.Context, provider ai.ProviderName) (string, error) {
	secret, err := keyring.Get(k.service, keyringUser(provider))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ai.ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: keyring get: %v", ai.ErrCredentialStoreUnavailable, err)
	}
	if secret == "" {
		return "", ai.ErrCredentialNotFound
	}
	return secret, nil
}

// Set implements Tier.
func (k *KeyringTier) Set(_ context.Context, provider ai.ProviderName, secret string) error {
	if err := keyring.Set(k.service, keyringUser(provider), secret); err != nil {
		return fmt.Errorf("%w: keyring set: %v", ai.ErrCredentialStoreUnavailable, err)
	}
	return nil
}

// Delete implements Tier.
func (k *KeyringTier) Delete(_ context.Context, provider ai.ProviderName) error {
	err := keyring.Delete(k.service, keyringUser(provider))
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: keyring delete: %v", ai.ErrCredentialStoreUnavailable, err)
}

// keyringUser is the account name for a provider, e.g. "claude_api_key".
func keyringUser(provider ai.ProviderName) string {
	return provider.String() + "_api_key"
}
