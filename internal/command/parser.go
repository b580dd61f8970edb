// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package command

import (
	"strings"

	"github.com/samber/oops"
)

// Parsed represents a parsed command input.
type Parsed struct {
	Name string // command name (first whitespace-delimited token)
	Args string // unparsed argument string (preserves internal whitespace)
	Raw  string // original input
}

// Parse splits raw input into command name and arguments.
// The command name is the first whitespace-delimited token.
// Arguments preserve internal whitespace.
func Parse(input string) (*Parsed, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, oops.Code("EMPTY_INPUT").Errorf("no command provided")
	}

	idx := strings.IndexAny(trimmed, " \t")
	if idx == -1 {
		return &Parsed{
			Name: trimmed,
			Args: "",
			Raw:  input,
		}, nil
	}

	name := trimmed[:idx]
	// Trim leading whitespace from args but preserve internal whitespace
	args := strings.TrimLeft(trimmed[idx+1:], " \t")

	return &Parsed{
		Name: name,
		Args: args,
		Raw:  input,
	}, nil
}

// SplitArgs splits an argument string into whitespace-delimited fields.
// Subcommand handlers use it to peel off tokens.
func SplitArgs(args string) []string {
	return strings.Fields(args)
}
