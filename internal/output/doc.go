// Package output formats a finished review for display or machine consumption.
//
// Four formats are supported:
//   - text     raw review text (default)
//   - markdown the review under an "**AI Review:**" heading
//   - json     a stable object with file, mode, target, text, error and timing
//   - pretty   markdown rendered for the terminal with glamour
//
// Use [GetWriter] to obtain a [Writer] for a format. Formats that can print
// a review while it is still arriving also implement [Streamer].
package output
