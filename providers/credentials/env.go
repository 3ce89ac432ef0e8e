package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/childreth/Olly/providers/ai"
)

// EnvTier reads {PROVIDER}_API_KEY from the process environment. It cannot be
// written, and deleting from it is a no-op: the variable belongs to the
// user's shell, and the resolver checks the durable tiers first anyway.
type EnvTier struct {
	lookup func(string) (string, bool)
}

var _ Tier = (*EnvTier)(nil)

// NewEnvTier creates a tier backed by os.LookupEnv.
func NewEnvTier() *EnvTier {
	return &EnvTier{lookup: os.LookupEnv}
}

// Name implements Tier.
func (e *EnvTier) Name() string { return TierEnv }

// Get implements Tier. Blank values count as absent.
func (e *EnvTier) Get(_ context.Context, provider ai.ProviderName) (string, error) {
	value, ok := e.lookup(provider.EnvVar())
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", ai.ErrCredentialNotFound
	}
	return value, nil
}

// Set implements Tier.
func (e *EnvTier) Set(context.Context, ai.ProviderName, string) error {
	return ErrReadOnlyTier
}

// Delete implements Tier.
func (e *EnvTier) Delete(context.Context, ai.ProviderName) error {
	return nil
}
