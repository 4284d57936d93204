package review

import "strings"

// DefaultPromptPrefix introduces the source text when no instruction is given.
const DefaultPromptPrefix = "Please review this code:"

// BuildPrompt constructs the single user turn sent for a review.
func BuildPrompt(instruction, source string) string {
	if strings.TrimSpace(instruction) == "" {
		return DefaultPromptPrefix + "\n\n" + source
	}
	return instruction + " \n\n Code: \n " + source
}
