// Package session binds the live settings, a backend factory, redaction and
// the review cache to the orchestrator. Hosts (the CLI, the editor bridge and
// the HTTP server) each hold one Session and drive every review and settings
// change through it.
//
// Settings are read once at the start of each review, so a concurrent
// settings change affects only reviews started after it.
package session
