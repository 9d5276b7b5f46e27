package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrExit ends the loop when returned by an Executor.
var ErrExit = errors.New("exit")

// Executor runs one parsed shell line.
type Executor interface {
	Execute(ctx context.Context, args []string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, args []string) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, args []string) error {
	return f(ctx, args)
}

// Config configures a REPL.
type Config struct {
	Input    io.Reader
	Output   io.Writer
	Prompt   string
	Executor Executor
	// Commands feeds suggestions for unknown commands and help.
	Commands []string
	History  *History
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = "gatemesh> "
	}
	if cfg.History == nil {
		cfg.History = NewHistory("")
	}
	return &REPL{
		input:     cfg.Input,
		output:    cfg.Output,
		prompt:    cfg.Prompt,
		exec:      cfg.Executor,
		completer: NewCompleter(append(cfg.Commands, builtins...)),
		history:   cfg.History,
	}
}

var builtins = []string{"help", "history", "exit", "quit"}

// Run reads lines until EOF, exit or ctx is done. Command errors are
// printed and do not end the loop.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer func() { _ = r.history.Save() }()

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.output, r.prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.output)
			return nil
		case err := <-readErr:
			fmt.Fprintln(r.output)
			return err
		case line = <-lines:
		}

		args, err := Split(line)
		if err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		r.history.Add(strings.TrimSpace(line))

		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			r.help()
			continue
		case "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
			continue
		}

		if !r.completer.Known(args[0]) {
			r.unknown(args[0])
			continue
		}
		if err := r.exec.Execute(ctx, args); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

func (r *REPL) help() {
	fmt.Fprintln(r.output, "commands:")
	for _, cmd := range r.completer.Complete("") {
		fmt.Fprintf(r.output, "  %s\n", cmd)
	}
}

func (r *REPL) unknown(cmd string) {
	fmt.Fprintf(r.output, "unknown command %q", cmd)
	if s := r.completer.Complete(cmd[:1]); len(s) > 0 {
		fmt.Fprintf(r.output, ", did you mean: %s", strings.Join(s, ", "))
	}
	fmt.Fprintln(r.output)
}

// Split breaks a line into words. Double quotes group words and a
// backslash escapes the next character inside them.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		inWord  bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote && ch == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case ch == '"':
			inQuote = !inQuote
			inWord = true
		case !inQuote && (ch == ' ' || ch == '\t'):
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(ch)
			inWord = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
