package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// blockedNotice is sent instead of a file blocked by path policy.
const blockedNotice = Placeholder + " (file content withheld by path policy)\n"

type pattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []pattern{
	{"api_key_assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"aws_access_key_id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws_secret_access_key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"secret_assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer_token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"private_key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack_token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic_key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai_project_key", regexp.MustCompile(`sk-(proj|svcacct|admin)-[A-Za-z0-9_-]{20,}`)},
	{"openai_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"hex_secret_assignment", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Policy selects what gets redacted.
type Policy struct {
	Secrets bool
	// Paths are glob patterns; a "**/" prefix also matches the base name.
	Paths []string
}

// Report describes what a redaction pass removed.
type Report struct {
	// Blocked is set when the whole file was withheld by path policy.
	Blocked bool
	// Matches counts redacted spans per pattern name.
	Matches map[string]int
}

// Total returns the number of redacted spans.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Matches {
		n += c
	}
	return n
}

// Changed reports whether anything was removed.
func (r Report) Changed() bool { return r.Blocked || r.Total() > 0 }

// Apply redacts text taken from fileName under policy p.
func (p Policy) Apply(text, fileName string) (string, Report) {
	if fileName != "" && MatchesPath(fileName, p.Paths) {
		return blockedNotice, Report{Blocked: true}
	}
	if !p.Secrets {
		return text, Report{}
	}
	return secrets(text)
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := secrets(text)
	return out
}

func secrets(text string) (string, Report) {
	rep := Report{}
	result := text
	for _, pat := range secretPatterns {
		result = pat.re.ReplaceAllStringFunc(result, func(string) string {
			if rep.Matches == nil {
				rep.Matches = map[string]int{}
			}
			rep.Matches[pat.name]++
			return Placeholder
		})
	}
	return result, rep
}

// MatchesPath checks if a file path matches any of the given glob patterns.
func MatchesPath(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		if clean, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, err := filepath.Match(clean, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}
	return false
}
