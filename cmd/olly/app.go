package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/childreth/Olly/core/gateway"
	"github.com/childreth/Olly/core/resolver"
	"github.com/childreth/Olly/internal/config"
	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/ai/anthropic"
	"github.com/childreth/Olly/providers/ai/ollama"
	"github.com/childreth/Olly/providers/ai/perplexity"
	"github.com/childreth/Olly/providers/credentials"
	"github.com/childreth/Olly/providers/observability"
	"github.com/childreth/Olly/providers/observability/slogobs"
)

// app carries the state shared by every subcommand once setup has run.
type app struct {
	cfgFile string
	envFile string
	verbose bool

	cfg      *config.Config
	observer *slogobs.Observer
	gateway  *gateway.Gateway
}

// setup loads configuration and builds the gateway. Legacy secrets are
// migrated on every start unless skipMigration is set.
func (a *app) setup(cmd *cobra.Command, skipMigration bool) error {
	if err := loadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slogobs.ParseLogLevel(cfg.Log.Level)
	if a.verbose {
		level = min(level, slog.LevelDebug)
	}
	a.observer = slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
		slogobs.WithLevel(level),
		slogobs.WithOutput(cmd.ErrOrStderr()),
	)

	a.gateway = gateway.New(a.newResolver(cmd.ErrOrStderr()), a.gatewayOptions()...)

	if skipMigration {
		return nil
	}
	ctx := observability.ContextWithObserver(cmd.Context(), a.observer)
	if _, err := a.gateway.MigrateLegacy(ctx); err != nil {
		a.observer.Warn(ctx, "Legacy key migration failed", observability.Error(err))
	}
	return nil
}

// loadDotEnv applies a .env file to the process environment. Only an
// explicitly named file is required to exist.
func loadDotEnv(path string) error {
	required := path != ""
	if !required {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (a *app) newResolver(notices io.Writer) *resolver.Resolver {
	var storeOpts []credentials.StoreOption
	if a.cfg.Keyring.Enabled {
		storeOpts = append(storeOpts, credentials.WithKeyringService(a.cfg.Keyring.Service))
	} else {
		storeOpts = append(storeOpts, credentials.WithoutKeyring())
	}
	store := credentials.NewStore(a.cfg.KeysDir, storeOpts...)
	legacy := credentials.NewLegacyFileTier(a.cfg.LegacyConfig)

	return resolver.New(store, legacy, resolver.WithNotifier(resolver.NotifierFunc(
		func(_ context.Context, message string) error {
			_, err := fmt.Fprintln(notices, message)
			return err
		},
	)))
}

func (a *app) gatewayOptions() []gateway.Option {
	claude := anthropic.New()
	if a.cfg.Anthropic.Version != "" {
		claude = claude.WithVersion(a.cfg.Anthropic.Version)
	}

	logLevel := gateway.LogLevelMinimal
	if a.verbose {
		logLevel = gateway.LogLevelVerbose
	}

	return []gateway.Option{
		gateway.WithProvider(withBaseURL(claude, a.cfg.Anthropic.BaseURL)),
		gateway.WithProvider(withBaseURL(perplexity.New(), a.cfg.Perplexity.BaseURL)),
		gateway.WithProvider(withBaseURL(ollama.New(), a.cfg.Ollama.BaseURL)),
		gateway.WithObserver(a.observer),
		gateway.WithLogger(a.observer.Logger(), logLevel),
		gateway.WithTimeouts(a.cfg.RequestTimeout, a.cfg.StreamTimeout),
		gateway.WithWebSearch(a.cfg.WebSearch),
		gateway.WithDefaultMaxTokens(a.cfg.MaxTokens),
	}
}

func withBaseURL(provider ai.Provider, baseURL string) ai.Provider {
	if baseURL == "" {
		return provider
	}
	return provider.WithBaseURL(baseURL)
}

// providerConfig returns the configured model and temperature for name.
func (a *app) providerConfig(name ai.ProviderName) config.ProviderConfig {
	switch name {
	case ai.ProviderClaude:
		return a.cfg.Anthropic.ProviderConfig
	case ai.ProviderPerplexity:
		return a.cfg.Perplexity
	case ai.ProviderOllama:
		return a.cfg.Ollama
	default:
		return config.ProviderConfig{}
	}
}

// provider resolves a user-supplied provider name against the registered
// adapters.
func (a *app) provider(name string) (ai.ProviderName, error) {
	provider, err := a.gateway.Provider(ai.CanonicalProvider(name))
	if err != nil {
		return "", err
	}
	return provider.Name(), nil
}
