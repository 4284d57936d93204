// Package cli wires together the Cobra command tree for the loupe binary.
//
// It defines the root command and all subcommands (review, verify, models,
// config, cache, editor, serve, version), binds flags, reads configuration,
// builds a session and maps outcomes to exit codes.
package cli
