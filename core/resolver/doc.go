// Package resolver produces a usable secret for a provider by walking the
// credential cascade: the durable store first, then the process environment,
// then the legacy config.env file. A secret found in a lower tier is copied
// into the store and removed from where it was found, so later lookups hit
// the store directly.
//
// MigrateLegacy performs the same migration in bulk at startup and reports
// which providers moved.
package resolver
