// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"regexp"
	"strings"

	"github.com/jllopis/sabia/pkg/errors"
)

// StopSequence halts generation before the model writes its own observation.
const StopSequence = "\nObservation:"

// Step is one parsed model turn. Exactly one of Action and FinalAnswer is set.
type Step struct {
	Thought     string
	Action      string
	ActionInput string
	FinalAnswer string
	Final       bool
}

var (
	reFinal       = regexp.MustCompile(`(?im)^[ \t]*final\s+answer\s*:`)
	reAction      = regexp.MustCompile(`(?im)^[ \t]*action\s*:[ \t]*([^\n]*)`)
	reActionInput = regexp.MustCompile(`(?im)^[ \t]*action\s+input\s*:`)
	reNextKeyword = regexp.MustCompile(`(?i)\n\s*(?:thought|action|observation|final\s+answer)\s*:`)
	reThought     = regexp.MustCompile(`(?i)^\s*thought\s*:`)
)

// ParseStep reads one model turn. Keywords only count at the start of a
// line. Output containing both an action and a final answer is ambiguous and
// rejected, as is output with neither.
func ParseStep(output string) (Step, error) {
	if i := strings.Index(output, StopSequence); i >= 0 {
		output = output[:i]
	}
	text := strings.TrimSpace(output)
	if text == "" {
		return Step{}, parseError("empty reply")
	}

	finalLoc := reFinal.FindStringIndex(text)
	actionLoc := reAction.FindStringSubmatchIndex(text)

	switch {
	case finalLoc != nil && actionLoc != nil:
		return Step{}, parseError("reply has both an Action and a Final Answer")
	case finalLoc != nil:
		answer := strings.TrimSpace(text[finalLoc[1]:])
		if answer == "" {
			return Step{}, parseError("empty Final Answer")
		}
		return Step{
			Thought:     thought(text[:finalLoc[0]]),
			FinalAnswer: answer,
			Final:       true,
		}, nil
	case actionLoc != nil:
		name := cleanName(text[actionLoc[2]:actionLoc[3]])
		if name == "" {
			return Step{}, parseError("Action without a capability name")
		}
		return Step{
			Thought:     thought(text[:actionLoc[0]]),
			Action:      name,
			ActionInput: actionInput(text[actionLoc[1]:]),
		}, nil
	default:
		return Step{}, parseError("reply has neither an Action nor a Final Answer")
	}
}

func parseError(detail string) *errors.SabiaError {
	return errors.New(errors.CodeParse, detail, nil).WithRecoverable(true)
}

func thought(s string) string {
	return strings.TrimSpace(reThought.ReplaceAllString(strings.TrimSpace(s), ""))
}

func actionInput(rest string) string {
	loc := reActionInput.FindStringIndex(rest)
	if loc == nil {
		return ""
	}
	in := rest[loc[1]:]
	if next := reNextKeyword.FindStringIndex(in); next != nil {
		in = in[:next[0]]
	}
	in = strings.TrimSpace(in)
	if len(in) >= 2 && in[0] == '"' && in[len(in)-1] == '"' {
		in = in[1 : len(in)-1]
	}
	return in
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`\"'[]().: ")
}
