package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/observability"
)

const indexFileName = "index.json"

// ProviderCredential is the metadata kept for a stored secret. The secret
// itself never appears in the index.
type ProviderCredential struct {
	Provider    ai.ProviderName `json:"provider"`
	DisplayName string          `json:"display_name"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUsed    *time.Time      `json:"last_used"`
	Active      bool            `json:"is_active"`
}

type credentialIndex struct {
	Providers map[ai.ProviderName]ProviderCredential `json:"providers"`
}

// Store is the durable part of the cascade: the OS keyring (when enabled)
// followed by the obfuscated key files. It is safe for concurrent use;
// concurrent writes for the same provider are last-writer-wins.
type Store struct {
	keyring   *KeyringTier
	file      *FileTier
	tiers     []Tier
	indexPath string
	now       func() time.Time

	indexMu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyringService files keyring entries under service.
func WithKeyringService(service string) StoreOption {
	return func(s *Store) {
		s.keyring = NewKeyringTier(service)
	}
}

// WithoutKeyring disables the keyring tier, leaving the key files as the only
// durable tier.
func WithoutKeyring() StoreOption {
	return func(s *Store) {
		s.keyring = nil
	}
}

// WithClock overrides the time source used for metadata timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store whose key files and index live in keysDir.
func NewStore(keysDir string, opts ...StoreOption) *Store {
	s := &Store{
		keyring:   NewKeyringTier(DefaultKeyringService),
		file:      NewFileTier(keysDir),
		indexPath: filepath.Join(keysDir, indexFileName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.keyring != nil {
		s.tiers = append(s.tiers, s.keyring)
	}
	s.tiers = append(s.tiers, s.file)
	return s
}

// Tiers returns the durable tiers in lookup order.
func (s *Store) Tiers() []Tier {
	return append([]Tier{}, s.tiers...)
}

// KeysDir returns the directory holding key files and the index.
func (s *Store) KeysDir() string {
	return s.file.Dir()
}

// Store saves secret for provider. The keyring write is attempted first and
// any failure there is logged and tolerated; the key file is always written
// and verified, and its failure is returned.
func (s *Store) Store(ctx context.Context, provider ai.ProviderName, secret string) error {
	provider = ai.CanonicalProvider(provider.String())
	secret = strings.TrimSpace(secret)
	if err := ValidateProvider(provider); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if secret == "" {
		return fmt.Errorf("store credential for %s: empty secret", provider)
	}

	logger := observability.LoggerFrom(ctx)

	if s.keyring != nil {
		if err := s.writeKeyring(ctx, provider, secret); err != nil {
			logger.Debug(ctx, "Keyring unavailable, relying on key file",
				observability.String(observability.AttrLLMProvider, provider.String()),
				observability.Error(err),
			)
		}
	}

	if err := s.file.Set(ctx, provider, secret); err != nil {
		logger.Error(ctx, "Failed to store credential",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.String(observability.AttrCredentialPath, s.file.Dir()),
			observability.Error(err),
		)
		return fmt.Errorf("store credential for %s: %w", provider, err)
	}

	logger.Info(ctx, "Stored credential",
		observability.String(observability.AttrLLMProvider, provider.String()),
		observability.SecretLength(secret),
	)

	if err := s.updateIndex(func(index *credentialIndex) {
		entry, exists := index.Providers[provider]
		if !exists {
			entry = ProviderCredential{Provider: provider, CreatedAt: s.now().UTC()}
		}
		entry.DisplayName = provider.DisplayName()
		entry.Active = true
		index.Providers[provider] = entry
	}); err != nil {
		logger.Warn(ctx, "Failed to update credential index",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.Error(err),
		)
	}
	return nil
}

// writeKeyring sets the keyring entry and reads it back.
func (s *Store) writeKeyring(ctx context.Context, provider ai.ProviderName, secret string) error {
	if err := s.keyring.Set(ctx, provider, secret); err != nil {
		return err
	}
	readBack, err := s.keyring.Get(ctx, provider)
	if err != nil {
		return fmt.Errorf("verify keyring entry: %w", err)
	}
	if readBack != secret {
		return errors.New("verify keyring entry: content mismatch")
	}
	return nil
}

// Get returns the secret from the first durable tier that has one. Tier
// failures are logged and skipped. When no tier has an entry the error is a
// *ai.CredentialNotFoundError.
func (s *Store) Get(ctx context.Context, provider ai.ProviderName) (CascadeResult, error) {
	provider = ai.CanonicalProvider(provider.String())
	logger := observability.LoggerFrom(ctx)

	for _, tier := range s.tiers {
		secret, err := tier.Get(ctx, provider)
		if err == nil {
			logger.Trace(ctx, "Credential found",
				observability.String(observability.AttrLLMProvider, provider.String()),
				observability.String(observability.AttrCredentialTier, tier.Name()),
				observability.SecretLength(secret),
			)
			return CascadeResult{Secret: secret, Tier: tier.Name()}, nil
		}
		if !IsNotFound(err) {
			logger.Debug(ctx, "Credential tier unavailable",
				observability.String(observability.AttrLLMProvider, provider.String()),
				observability.String(observability.AttrCredentialTier, tier.Name()),
				observability.Error(err),
			)
		}
	}
	return CascadeResult{}, &ai.CredentialNotFoundError{Provider: provider}
}

// Delete removes provider's secret from every durable tier and drops its
// metadata. Missing entries are not an error; a keyring failure is logged.
func (s *Store) Delete(ctx context.Context, provider ai.ProviderName) error {
	provider = ai.CanonicalProvider(provider.String())
	if err := ValidateProvider(provider); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	logger := observability.LoggerFrom(ctx)

	if s.keyring != nil {
		if err := s.keyring.Delete(ctx, provider); err != nil {
			logger.Debug(ctx, "Keyring delete failed",
				observability.String(observability.AttrLLMProvider, provider.String()),
				observability.Error(err),
			)
		}
	}
	if err := s.file.Delete(ctx, provider); err != nil {
		return fmt.Errorf("delete credential for %s: %w", provider, err)
	}

	if err := s.updateIndex(func(index *credentialIndex) {
		delete(index.Providers, provider)
	}); err != nil {
		logger.Warn(ctx, "Failed to update credential index",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.Error(err),
		)
	}

	logger.Info(ctx, "Deleted credential", observability.String(observability.AttrLLMProvider, provider.String()))
	return nil
}

// List returns the providers with a stored secret, sorted by name. Key
// files are authoritative; keyring entries for known providers are added
// when the keyring answers.
func (s *Store) List(ctx context.Context) ([]ai.ProviderName, error) {
	fromFiles, err := s.file.Providers()
	if err != nil {
		return nil, err
	}

	present := make(map[ai.ProviderName]bool, len(fromFiles))
	for _, provider := range fromFiles {
		present[provider] = true
	}

	if s.keyring != nil {
		for _, provider := range ai.KnownProviders() {
			if present[provider] {
				continue
			}
			if _, err := s.keyring.Get(ctx, provider); err == nil {
				present[provider] = true
			}
		}
	}

	providers := make([]ai.ProviderName, 0, len(present))
	for provider := range present {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers, nil
}

// Info returns the metadata for provider's stored secret. A secret stored
// without metadata, for example by an older release, gets synthesized
// metadata with a zero CreatedAt.
func (s *Store) Info(ctx context.Context, provider ai.ProviderName) (ProviderCredential, error) {
	provider = ai.CanonicalProvider(provider.String())

	s.indexMu.Lock()
	index, err := s.loadIndex()
	s.indexMu.Unlock()
	if err != nil {
		observability.LoggerFrom(ctx).Warn(ctx, "Credential index unreadable",
			observability.String(observability.AttrCredentialPath, s.indexPath),
			observability.Error(err),
		)
	}

	if _, getErr := s.Get(ctx, provider); getErr != nil {
		return ProviderCredential{}, getErr
	}

	if entry, ok := index.Providers[provider]; ok {
		return entry, nil
	}
	return ProviderCredential{Provider: provider, DisplayName: provider.DisplayName(), Active: true}, nil
}

// Touch records that provider's secret was just used.
func (s *Store) Touch(_ context.Context, provider ai.ProviderName) error {
	provider = ai.CanonicalProvider(provider.String())
	now := s.now().UTC()

	return s.updateIndex(func(index *credentialIndex) {
		entry, exists := index.Providers[provider]
		if !exists {
			entry = ProviderCredential{
				Provider:    provider,
				DisplayName: provider.DisplayName(),
				CreatedAt:   now,
				Active:      true,
			}
		}
		entry.LastUsed = &now
		index.Providers[provider] = entry
	})
}

// updateIndex applies mutate to the index under the lock and saves it. An
// unreadable index is replaced rather than blocking writes.
func (s *Store) updateIndex(mutate func(*credentialIndex)) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	index, _ := s.loadIndex()
	mutate(&index)

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.indexPath), keysDirMode); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}
	if err := writeFileAtomic(s.indexPath, data, keyFileMode); err != nil {
		return fmt.Errorf("write credential index: %w", err)
	}
	return nil
}

// loadIndex reads the index file. It always returns a usable index, empty
// when the file is missing or corrupt. Callers hold indexMu.
func (s *Store) loadIndex() (credentialIndex, error) {
	index := credentialIndex{Providers: map[ai.ProviderName]ProviderCredential{}}

	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return index, fmt.Errorf("read credential index: %w", err)
	}

	var decoded credentialIndex
	if err := json.Unmarshal(data, &decoded); err != nil {
		return index, fmt.Errorf("decode credential index: %w", err)
	}
	if decoded.Providers != nil {
		index.Providers = decoded.Providers
	}
	return index, nil
}
