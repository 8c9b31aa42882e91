// Package flow parses natural-language flow definitions and executes
// them step by step against a provider client
package flow

import (
	"regexp"
	"strings"

	"github.com/flowchat/engine/pkg/api"
)

var (
	// stepMarker strips leading list decoration: "1.", "2)", "-", "*"
	stepMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.):]|[-*•])\s*`)

	// connectorPattern splits clauses chained by sequence words
	connectorPattern = regexp.MustCompile(
		`(?i)(?:,\s*|;\s*|\s+)(?:and\s+then|then|next|after that|finally)[,:]?\s+`,
	)
)

// Parse turns free text into an ordered list of instruction steps. Each
// step after the first consumes the previous step's output; the parser
// is a heuristic splitter and makes no attempt at real language
// understanding
func Parse(source string) (*api.ParsedFlow, error) {
	var instructions []string
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = stepMarker.ReplaceAllString(line, "")
		for _, part := range connectorPattern.Split(line, -1) {
			part = strings.TrimSpace(strings.TrimRight(part, ".;,"))
			if part != "" {
				instructions = append(instructions, part)
			}
		}
	}

	if len(instructions) == 0 {
		return nil, api.ErrNoSteps
	}

	steps := make([]api.FlowStep, len(instructions))
	for i, instruction := range instructions {
		steps[i] = api.FlowStep{
			Order:              i + 1,
			Instruction:        instruction,
			UsesPreviousOutput: i > 0,
		}
	}

	flow := &api.ParsedFlow{
		Source: source,
		Steps:  steps,
	}
	if err := flow.Validate(); err != nil {
		return nil, err
	}
	return flow, nil
}
