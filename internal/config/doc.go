// Package config loads and merges loupe configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (LOUPE_MODEL, LOUPE_ASSISTANT_ID, LOUPE_CACHE_ENABLED, etc.)
//  3. Config file ($XDG_CONFIG_HOME/loupe/config.json)
//  4. Built-in defaults
//
// The API key is read from LOUPE_API_KEY or OPENAI_API_KEY and is never
// written by [Save].
//
// [Store] holds the live [Settings] used by long-running hosts. Readers see
// the value current at the time of the call; updates replace it wholesale.
package config
