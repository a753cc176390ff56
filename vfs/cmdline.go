package vfs

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// CommandLine is a parsed provider command line.
//
// Switches take the form -Key=Value or -Flag (one or two leading dashes).
// Keys are matched case-insensitively; when a key repeats, the last value
// wins. Words without a leading dash are kept as positional arguments.
type CommandLine struct {
	raw    string
	values map[string]string
	args   []string
}

// ParseCommandLine splits s into shell words and collects its switches.
// Quoting follows POSIX shell rules, so -root="My Content" is one switch.
// Variable references are expanded from the process environment.
func ParseCommandLine(s string) (CommandLine, error) {
	cl := CommandLine{raw: s, values: make(map[string]string)}
	if strings.TrimSpace(s) == "" {
		return cl, nil
	}
	words, err := shell.Fields(s, nil)
	if err != nil {
		return CommandLine{}, fmt.Errorf("parse command line: %w", err)
	}
	for _, w := range words {
		if !strings.HasPrefix(w, "-") || w == "-" {
			cl.args = append(cl.args, w)
			continue
		}
		sw := strings.TrimPrefix(strings.TrimPrefix(w, "-"), "-")
		key, value, _ := strings.Cut(sw, "=")
		if key == "" {
			cl.args = append(cl.args, w)
			continue
		}
		cl.values[strings.ToLower(key)] = value
	}
	return cl, nil
}

// Lookup returns the value of switch key and whether it was present.
func (c CommandLine) Lookup(key string) (string, bool) {
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

// Value returns the value of switch key, or "" if absent.
func (c CommandLine) Value(key string) string {
	v, _ := c.Lookup(key)
	return v
}

// Has reports whether switch key was present, with or without a value.
func (c CommandLine) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Args returns the positional words.
func (c CommandLine) Args() []string {
	return c.args
}

// String returns the command line as given.
func (c CommandLine) String() string {
	return c.raw
}
