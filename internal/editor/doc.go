// Package editor implements the stdio bridge an editor plugin drives.
//
// Each request is one JSON object per line on stdin, for example:
//
//	{"action":"review","request_id":1,"file_name":"main.go","document":"...","selection":"..."}
//
// Responses are JSON lines on stdout and carry the request's request_id. A
// review answers with "progress", an "info" line when a selection was sent,
// a "markdown" heading, one "fragment" per piece of review text and a final
// "done". Settings actions ("set_api_key", "set_assistant_id",
// "set_organization", "set_model") answer "info" on success and "warning"
// when validation rejects the value.
package editor
