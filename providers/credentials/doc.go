// Package credentials stores provider secrets across an ordered list of
// tiers.
//
// The durable tiers are the OS keyring and an obfuscated per-provider file
// under the application keys directory. Two read-mostly tiers, the process
// environment and the legacy config.env file, are consulted by the resolver
// and drained into the durable tiers when a secret is found there.
//
// The file transform is a fixed-key XOR. It keeps secrets out of plain sight
// on disk and is not encryption.
package credentials
