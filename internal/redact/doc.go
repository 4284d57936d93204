// Package redact scrubs secrets from source text before it leaves the machine.
//
// Detection is heuristic: a fixed set of patterns covers API key assignments,
// JWTs, private key headers, AWS keys, bearer tokens, and provider tokens
// (OpenAI, Anthropic, GitHub, Slack). A [Policy] can also block whole files by
// glob, in which case nothing from the file is sent.
package redact
