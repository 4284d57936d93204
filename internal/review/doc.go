// Package review orchestrates a single LLM code review.
//
// A [Request] carries the source text and an optional instruction. The
// [Orchestrator] routes it, through a [Policy], either to a persistent
// assistant or to a stateless chat completion:
//
//   - Assistant reviews create a throwaway thread, append one prompt message,
//     start a run and obtain its text. The thread is deleted on every exit
//     path, including failures and cancelled contexts.
//   - Completion reviews issue one chat completion and need no cleanup.
//
// Text is obtained either incrementally (an event stream forwarded to a
// [FragmentFunc]) or by polling the run status on a fixed interval. Both
// strategies implement one internal interface and are selected by whether
// the caller supplied a fragment callback.
//
// Review never returns a Go error. Transport failures, server-reported run
// failures and protocol errors are folded into [Result], whose Text is then
// prefixed with "Error: ". [ValidateCredential] and [ValidateAssistant] are
// read-only checks that answer with a bool.
package review
