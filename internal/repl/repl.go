// Package repl is the interactive question loop.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tablequery/tablequery/internal/assistant"
	"github.com/tablequery/tablequery/internal/schema"
)

const prompt = "tablequery> "

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type Asker interface {
	Ask(ctx context.Context, question string) assistant.Outcome
}

type Options struct {
	Reader    LineReader
	Out       io.Writer
	Assistant Asker
	Summary   schema.Summary
}

// NewReadline builds a line editor with persistent history and completion
// for commands and column names. An empty historyFile disables history.
func NewReadline(historyFile string, columns []string) (*readline.Instance, error) {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("schema"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	}
	for _, column := range columns {
		items = append(items, readline.PcItem(column))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize line editor: %w", err)
	}
	return rl, nil
}

// Run reads questions until exit, EOF, an interrupt on an empty line or
// cancellation of ctx.
func Run(ctx context.Context, opts Options) error {
	if opts.Reader == nil || opts.Assistant == nil {
		return fmt.Errorf("reader and assistant are required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	_, _ = fmt.Fprintf(out, "Loaded %s: %d rows, %d columns.\n", opts.Summary.Source, opts.Summary.Rows, len(opts.Summary.Columns))
	_, _ = fmt.Fprintln(out, "Ask a question about the data. Type help for commands, exit to quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := opts.Reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "schema":
			_, _ = fmt.Fprint(out, opts.Summary.Describe())
			continue
		case "help":
			printHelp(out)
			continue
		}

		Render(out, opts.Assistant.Ask(ctx, line))
	}
}

// Render prints an outcome the way the loop shows it.
func Render(w io.Writer, outcome assistant.Outcome) {
	if outcome.Succeeded() {
		_, _ = fmt.Fprintf(w, "\nGenerated plan:\n```json\n%s\n```\n\nResult:\n%s\n\n", outcome.Expression, outcome.Result.Text())
		return
	}
	_, _ = fmt.Fprintf(w, "\nError: %s\n", outcome.Error)
	if outcome.Message != "" {
		_, _ = fmt.Fprintf(w, "Model response: %s\n", outcome.Message)
	}
	_, _ = fmt.Fprintln(w)
}

func printHelp(w io.Writer) {
	_, _ = fmt.Fprint(w, `
Commands:
  schema        Describe the loaded table
  help          Show this help message
  exit / quit   Leave

Anything else is sent to the model as a question.

`)
}
