// Package providers implements the remote API surface used by the review
// orchestrator.
//
// [Backend] lists the calls a review needs: thread create/delete, message
// append, run start/stream/status, message listing, chat completions
// (streaming and not), model listing and assistant retrieval. [OpenAI]
// implements it with the official OpenAI Go SDK; "ollama" and "lmstudio"
// reuse it against a local OpenAI-compatible endpoint.
//
// Calls are never retried. API failures are wrapped in typed errors so callers
// can tell authentication problems ([IsAuthError]) from rate limiting and
// server faults. HTTP clients are injectable so tests can point the SDK at
// httptest servers.
package providers
