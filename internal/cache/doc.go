// Package cache stores finished reviews on disk so an identical request can be
// answered without another round trip.
//
// Entries are keyed by a SHA-256 hash of the backend, the review target
// (assistant id or model) and the exact prompt, which is built from source
// text that has already been through redaction. Entries older than the TTL are
// treated as misses and removed on read. Only successful reviews are stored.
//
// The default directory is $XDG_CACHE_HOME/loupe (or the OS-appropriate
// equivalent). The cache is off unless cache.enabled is set.
package cache
