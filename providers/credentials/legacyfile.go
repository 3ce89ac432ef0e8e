package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/childreth/Olly/providers/ai"
)

const legacyKeySuffix = "_API_KEY"

// LegacyEntry is one PROVIDER_API_KEY=value assignment found in the legacy
// config file.
type LegacyEntry struct {
	Provider ai.ProviderName
	Secret   string
	Line     int // 1-based
}

// LegacyFileTier reads the flat config.env file older releases wrote. It is
// only ever written to remove migrated assignments; every other line is kept
// byte for byte and in order.
type LegacyFileTier struct {
	path string
}

var _ Tier = (*LegacyFileTier)(nil)

// NewLegacyFileTier creates a tier over the file at path.
func NewLegacyFileTier(path string) *LegacyFileTier {
	return &LegacyFileTier{path: path}
}

// Name implements Tier.
func (l *LegacyFileTier) Name() string { return TierLegacy }

// Path returns the config file location.
func (l *LegacyFileTier) Path() string { return l.path }

// Entries parses every API key assignment in file order. A missing file has
// no entries. The provider token is matched case-insensitively.
func (l *LegacyFileTier) Entries() ([]LegacyEntry, error) {
	lines, err := l.readLines()
	if err != nil || lines == nil {
		return nil, err
	}

	var entries []LegacyEntry
	for i, line := range lines {
		provider, secret, ok := parseLegacyLine(line)
		if !ok {
			continue
		}
		entries = append(entries, LegacyEntry{Provider: provider, Secret: secret, Line: i + 1})
	}
	return entries, nil
}

// Get implements Tier. The first non-empty assignment for the provider wins.
func (l *LegacyFileTier) Get(_ context.Context, provider ai.ProviderName) (string, error) {
	entries, err := l.Entries()
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.Provider == provider && entry.Secret != "" {
			return entry.Secret, nil
		}
	}
	return "", ai.ErrCredentialNotFound
}

// Set implements Tier.
func (l *LegacyFileTier) Set(context.Context, ai.ProviderName, string) error {
	return ErrReadOnlyTier
}

// Delete implements Tier by removing the provider's assignment lines.
func (l *LegacyFileTier) Delete(_ context.Context, provider ai.ProviderName) error {
	_, err := l.Remove(provider)
	return err
}

// Remove rewrites the file without the assignment lines of the given
// providers and reports how many lines were removed. The file is left
// untouched when nothing matches.
func (l *LegacyFileTier) Remove(providers ...ai.ProviderName) (int, error) {
	lines, err := l.readLines()
	if err != nil || lines == nil {
		return 0, err
	}

	drop := make(map[ai.ProviderName]bool, len(providers))
	for _, provider := range providers {
		drop[provider] = true
	}

	var kept strings.Builder
	removed := 0
	for _, line := range lines {
		if provider, _, ok := parseLegacyLine(line); ok && drop[provider] {
			removed++
			continue
		}
		kept.WriteString(line)
	}
	if removed == 0 {
		return 0, nil
	}

	if err := l.replace(kept.String()); err != nil {
		return 0, err
	}
	return removed, nil
}

// readLines splits the file after each newline so terminators are preserved.
// A missing file yields nil lines and no error.
func (l *LegacyFileTier) readLines() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read legacy config: %v", ai.ErrCredentialStoreUnavailable, err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// replace writes content over the file, keeping its permissions.
func (l *LegacyFileTier) replace(content string) error {
	mode := fs.FileMode(keyFileMode)
	if info, err := os.Stat(l.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := writeFileAtomic(l.path, []byte(content), mode); err != nil {
		return fmt.Errorf("rewrite legacy config: %w", err)
	}
	return nil
}

// parseLegacyLine recognizes NAME_API_KEY=value, ignoring comments and any
// other assignment.
func parseLegacyLine(line string) (ai.ProviderName, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}

	name, value, found := strings.Cut(trimmed, "=")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if len(name) <= len(legacyKeySuffix) || !strings.EqualFold(name[len(name)-len(legacyKeySuffix):], legacyKeySuffix) {
		return "", "", false
	}

	provider := ai.CanonicalProvider(name[:len(name)-len(legacyKeySuffix)])
	if ValidateProvider(provider) != nil {
		return "", "", false
	}
	return provider, strings.TrimSpace(value), true
}
