package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/childreth/Olly/providers/ai"
	"github.com/childreth/Olly/providers/credentials"
	"github.com/childreth/Olly/providers/observability"
)

// Notifier receives the human-readable summary of a bulk migration.
type Notifier interface {
	NotifyMigration(ctx context.Context, message string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string) error

// NotifyMigration implements Notifier.
func (f NotifierFunc) NotifyMigration(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Resolver walks the credential cascade with migration on hit. It holds no
// mutable state of its own and is safe for concurrent use.
type Resolver struct {
	store    *credentials.Store
	legacy   *credentials.LegacyFileTier
	fallback []credentials.Tier
	notifier Notifier
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNotifier sets the receiver of migration summaries.
func WithNotifier(notifier Notifier) Option {
	return func(r *Resolver) {
		r.notifier = notifier
	}
}

// WithFallbackTiers replaces the tiers consulted after the store. The
// default is the environment followed by the legacy file.
func WithFallbackTiers(tiers ...credentials.Tier) Option {
	return func(r *Resolver) {
		r.fallback = tiers
	}
}

// New creates a resolver over store, reading legacy assignments from legacy.
func New(store *credentials.Store, legacy *credentials.LegacyFileTier, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		legacy:   legacy,
		fallback: []credentials.Tier{credentials.NewEnvTier(), legacy},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the durable store the resolver migrates into.
func (r *Resolver) Store() *credentials.Store {
	return r.store
}

// Resolve returns provider's secret. A hit in the store updates its last-used
// time. A hit in a fallback tier is stored durably and then deleted from that
// tier; if storing fails the secret is still returned and the fallback entry
// is left in place. When every tier misses the error is a
// *ai.CredentialNotFoundError.
func (r *Resolver) Resolve(ctx context.Context, provider ai.ProviderName) (string, error) {
	provider = ai.CanonicalProvider(provider.String())

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		var span observability.Span
		ctx, span = observer.StartSpan(ctx, observability.SpanResolve,
			observability.String(observability.AttrLLMProvider, provider.String()))
		defer span.End()
		ctx = observability.ContextWithSpan(ctx, span)
	}
	logger := observability.LoggerFrom(ctx)

	if result, err := r.store.Get(ctx, provider); err == nil {
		r.touch(ctx, provider)
		recordTier(ctx, result.Tier)
		return result.Secret, nil
	}

	for _, tier := range r.fallback {
		secret, err := tier.Get(ctx, provider)
		if credentials.IsNotFound(err) {
			continue
		}
		if err != nil {
			logger.Debug(ctx, "Credential tier unavailable",
				observability.String(observability.AttrLLMProvider, provider.String()),
				observability.String(observability.AttrCredentialTier, tier.Name()),
				observability.Error(err),
			)
			continue
		}

		recordTier(ctx, tier.Name())
		r.migrate(ctx, provider, secret, tier)
		return secret, nil
	}

	logger.Debug(ctx, "No credential in any tier", observability.String(observability.AttrLLMProvider, provider.String()))
	return "", &ai.CredentialNotFoundError{Provider: provider}
}

// migrate moves a secret found in tier into the store.
func (r *Resolver) migrate(ctx context.Context, provider ai.ProviderName, secret string, tier credentials.Tier) {
	logger := observability.LoggerFrom(ctx)

	if err := r.store.Store(ctx, provider, secret); err != nil {
		logger.Warn(ctx, "Could not migrate credential to secure storage",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.String(observability.AttrCredentialTier, tier.Name()),
			observability.Error(err),
		)
		return
	}

	if err := tier.Delete(ctx, provider); err != nil {
		logger.Warn(ctx, "Migrated credential but could not remove the old copy",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.String(observability.AttrCredentialTier, tier.Name()),
			observability.Error(err),
		)
	}

	r.touch(ctx, provider)
	observability.CounterFrom(ctx, observability.MetricCredentialsMigrated).Add(ctx, 1,
		observability.String(observability.AttrLLMProvider, provider.String()),
		observability.String(observability.AttrCredentialTier, tier.Name()),
	)
	logger.Info(ctx, "Migrated credential to secure storage",
		observability.String(observability.AttrLLMProvider, provider.String()),
		observability.String(observability.AttrCredentialTier, tier.Name()),
	)
}

func (r *Resolver) touch(ctx context.Context, provider ai.ProviderName) {
	if err := r.store.Touch(ctx, provider); err != nil {
		observability.LoggerFrom(ctx).Debug(ctx, "Could not record credential use",
			observability.String(observability.AttrLLMProvider, provider.String()),
			observability.Error(err),
		)
	}
}

func recordTier(ctx context.Context, tier string) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(observability.String(observability.AttrCredentialTier, tier))
	}
}

// MigrationReport summarizes one bulk migration run.
type MigrationReport struct {
	// Migrated lists providers whose secret moved into the store, in the
	// order their assignments appear in the legacy file.
	Migrated []ai.ProviderName
	// Stripped lists providers whose assignment lines were removed because
	// the store already had a secret for them.
	Stripped []ai.ProviderName
	// Message is the notification text, empty when nothing migrated.
	Message string
	// RewriteErr is set when the legacy file could not be rewritten. The
	// migration into the store still stands.
	RewriteErr error
}

// MigrateLegacy moves every Claude and Perplexity secret in the legacy file
// into the store, then rewrites the file without the moved assignments. Any
// other *_API_KEY line belongs to someone else and is left untouched.
// Assignments for providers the store already holds are stripped without
// being stored again, so a second run changes nothing and reports nothing.
// Only a failure to read the legacy file is returned; store, rewrite and
// notification failures are logged.
func (r *Resolver) MigrateLegacy(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		var span observability.Span
		ctx, span = observer.StartSpan(ctx, observability.SpanMigrate,
			observability.String(observability.AttrCredentialPath, r.legacy.Path()))
		defer span.End()
		ctx = observability.ContextWithSpan(ctx, span)
	}
	logger := observability.LoggerFrom(ctx)

	entries, err := r.legacy.Entries()
	if err != nil {
		return report, fmt.Errorf("read legacy config: %w", err)
	}
	if len(entries) == 0 {
		logger.Debug(ctx, "No legacy credentials to migrate",
			observability.String(observability.AttrCredentialPath, r.legacy.Path()))
		return report, nil
	}

	handled := make(map[ai.ProviderName]bool)
	var strip []ai.ProviderName

	for _, entry := range entries {
		if handled[entry.Provider] || entry.Secret == "" {
			continue
		}
		if !slices.Contains(ai.CredentialProviders(), entry.Provider) {
			logger.Debug(ctx, "Leaving unrelated legacy key in place",
				observability.Int("line", entry.Line))
			continue
		}
		handled[entry.Provider] = true

		if _, err := r.store.Get(ctx, entry.Provider); err == nil {
			logger.Info(ctx, "Credential already in secure storage, removing legacy entry",
				observability.String(observability.AttrLLMProvider, entry.Provider.String()))
			report.Stripped = append(report.Stripped, entry.Provider)
			strip = append(strip, entry.Provider)
			continue
		}

		if err := r.store.Store(ctx, entry.Provider, entry.Secret); err != nil {
			logger.Error(ctx, "Failed to migrate legacy credential",
				observability.String(observability.AttrLLMProvider, entry.Provider.String()),
				observability.Error(err),
			)
			continue
		}

		observability.CounterFrom(ctx, observability.MetricCredentialsMigrated).Add(ctx, 1,
			observability.String(observability.AttrLLMProvider, entry.Provider.String()),
			observability.String(observability.AttrCredentialTier, credentials.TierLegacy),
		)
		report.Migrated = append(report.Migrated, entry.Provider)
		strip = append(strip, entry.Provider)
	}

	if len(strip) > 0 {
		if _, err := r.legacy.Remove(strip...); err != nil {
			report.RewriteErr = err
			logger.Error(ctx, "Failed to update legacy config after migration",
				observability.String(observability.AttrCredentialPath, r.legacy.Path()),
				observability.Error(err),
			)
		} else {
			logger.Info(ctx, "Removed migrated credentials from legacy config",
				observability.String(observability.AttrCredentialPath, r.legacy.Path()))
		}
	}

	if len(report.Migrated) == 0 {
		return report, nil
	}

	report.Message = MigrationMessage(report.Migrated)
	logger.Info(ctx, report.Message,
		observability.Strings(observability.AttrCredentialMigrated, providerStrings(report.Migrated)))

	if r.notifier != nil {
		if err := r.notifier.NotifyMigration(ctx, report.Message); err != nil {
			logger.Warn(ctx, "Failed to deliver migration notification", observability.Error(err))
		}
	}
	return report, nil
}

// MigrationMessage formats the notification for migrated providers, e.g.
// "Migrated 2 API key(s) to secure storage: Claude, Perplexity".
func MigrationMessage(migrated []ai.ProviderName) string {
	labels := make([]string, len(migrated))
	for i, provider := range migrated {
		labels[i] = strings.TrimSuffix(provider.DisplayName(), " API")
	}
	return fmt.Sprintf("Migrated %d API key(s) to secure storage: %s", len(migrated), strings.Join(labels, ", "))
}

func providerStrings(providers []ai.ProviderName) []string {
	out := make([]string, len(providers))
	for i, provider := range providers {
		out[i] = provider.String()
	}
	return out
}
