package flow

import "regexp"

// referencePattern matches the words that signal an instruction is
// talking about prior output. The word list and the resulting prepend
// versus append placement are load-bearing for prompt compatibility
var referencePattern = regexp.MustCompile(
	`(?i)\b(this|that|it|the result|output|response|text|content)\b`,
)

// BuildPrompt merges the previous step's output into an instruction.
// Instructions that reference prior output get it prepended under a
// "Given this content" lead-in so the reference resolves naturally;
// anything else gets it appended under a "Content to work with" label
func BuildPrompt(instruction, previous string) string {
	if previous == "" {
		return instruction
	}
	if referencePattern.MatchString(instruction) {
		return "Given this content:\n\n" + previous + "\n\n" + instruction
	}
	return instruction + "\n\nContent to work with:\n" + previous
}
