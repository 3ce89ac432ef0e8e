package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/childreth/Olly/providers/ai"
)

// Tier names, as reported in logs and cascade results.
const (
	TierKeyring = "keyring"
	TierFile    = "file"
	TierEnv     = "env"
	TierLegacy  = "legacy"
)

var (
	// ErrReadOnlyTier is returned by Set on tiers that cannot be written.
	ErrReadOnlyTier = errors.New("credential tier is read-only")

	// ErrInvalidProvider is returned for provider names that are not plain
	// identifiers. Names become file names and keyring users, so separators
	// and dots are never accepted.
	ErrInvalidProvider = errors.New("invalid provider name")
)

// ValidateProvider checks that provider is a non-empty lowercase identifier
// made of letters, digits, '_' and '-'.
func ValidateProvider(provider ai.ProviderName) error {
	name := provider.String()
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidProvider)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidProvider, name)
		}
	}
	return nil
}

// Tier is one storage backend of the credential cascade.
//
// Get returns ai.ErrCredentialNotFound (possibly wrapped) when the tier has
// no entry for the provider and an error wrapping
// ai.ErrCredentialStoreUnavailable when the backend itself failed. Delete
// treats a missing entry as success.
type Tier interface {
	Name() string
	Get(ctx context.Context, provider ai.ProviderName) (string, error)
	Set(ctx context.Context, provider ai.ProviderName, secret string) error
	Delete(ctx context.Context, provider ai.ProviderName) error
}

// CascadeResult is a resolved secret together with the tier it came from.
type CascadeResult struct {
	Secret string
	Tier   string
}

// IsNotFound reports whether err means the tier simply had no entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ai.ErrCredentialNotFound)
}
