package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/childreth/Olly/providers/ai"
)

const (
	keyFileExtension = ".key"
	keysDirMode      = 0o700
	keyFileMode      = 0o600
)

// obfuscationKey is fixed so files written by earlier releases stay readable.
var obfuscationKey = []byte("olly_secure_2024")

// FileTier keeps one obfuscated file per provider, <dir>/<provider>.key.
type FileTier struct {
	dir string
}

var _ Tier = (*FileTier)(nil)

// NewFileTier creates a file tier rooted at dir. The directory is created on
// first write.
func NewFileTier(dir string) *FileTier {
	return &FileTier{dir: dir}
}

// Name implements Tier.
func (f *FileTier) Name() string { return TierFile }

// Dir returns the keys directory.
func (f *FileTier) Dir() string { return f.dir }

// Path returns the file holding provider's secret. Names that are not plain
// identifiers are rejected so the path always stays inside the keys
// directory.
func (f *FileTier) Path(provider ai.ProviderName) (string, error) {
	if err := ValidateProvider(provider); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, provider.String()+keyFileExtension), nil
}

// Get implements Tier.
func (f *FileTier) Get(_ context.Context, provider ai.ProviderName) (string, error) {
	path, err := f.Path(provider)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ai.ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: read key file: %v", ai.ErrCredentialStoreUnavailable, err)
	}

	decoded := xorTransform(data)
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: key file for %s is corrupt", ai.ErrCredentialStoreUnavailable, provider)
	}
	if len(decoded) == 0 {
		return "", ai.ErrCredentialNotFound
	}
	return string(decoded), nil
}

// Set implements Tier. The file is read back after writing and a mismatch is
// an error.
func (f *FileTier) Set(_ context.Context, provider ai.ProviderName, secret string) error {
	path, err := f.Path(provider)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, keysDirMode); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}

	encoded := xorTransform([]byte(secret))
	if err := os.WriteFile(path, encoded, keyFileMode); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	readBack, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify key file: %w", err)
	}
	if !bytes.Equal(readBack, encoded) {
		return fmt.Errorf("verify key file %s: content mismatch", path)
	}
	return nil
}

// Delete implements Tier.
func (f *FileTier) Delete(_ context.Context, provider ai.ProviderName) error {
	path, err := f.Path(provider)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("delete key file: %w", err)
}

// Providers lists the providers that have a key file, sorted by name.
func (f *FileTier) Providers() ([]ai.ProviderName, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list keys directory: %w", err)
	}

	var providers []ai.ProviderName
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, keyFileExtension) {
			continue
		}
		providers = append(providers, ai.ProviderName(strings.TrimSuffix(name, keyFileExtension)))
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers, nil
}

// xorTransform applies the repeating-key XOR. It is its own inverse.
func xorTransform(input []byte) []byte {
	output := make([]byte, len(input))
	for i, b := range input {
		output[i] = b ^ obfuscationKey[i%len(obfuscationKey)]
	}
	return output
}
