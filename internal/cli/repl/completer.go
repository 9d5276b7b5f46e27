package repl

import (
	"sort"
	"strings"
)

// Completer knows the shell commands.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for commands.
func NewCompleter(commands []string) *Completer {
	seen := make(map[string]bool, len(commands))
	var out []string
	for _, c := range commands {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return &Completer{commands: out}
}

// Complete returns the commands starting with prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether cmd is a command.
func (c *Completer) Known(cmd string) bool {
	i := sort.SearchStrings(c.commands, cmd)
	return i < len(c.commands) && c.commands[i] == cmd
}
