// Loupe reviews code with an OpenAI assistant or chat model.
//
// A review without an instruction runs on the configured assistant in a fresh
// thread that is deleted when the review ends. A review with an instruction is
// answered by one chat completion. The same reviews are available to editor
// plugins over stdio and to local tools over HTTP.
//
// Usage:
//
//	loupe review main.go                     # review a whole file
//	loupe review main.go --lines 10:42       # review a line range
//	git diff | loupe review -q "Find bugs"   # review stdin with an instruction
//	loupe verify key                         # check the configured API key
//	loupe editor                             # JSON-lines bridge for editors
//	loupe serve                              # local HTTP API
package main
