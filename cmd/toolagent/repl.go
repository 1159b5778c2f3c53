package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rahul/toolagent/internal/observability"
)

const (
	replPrompt = "toolagent> "
	replChatID = "repl"
)

func (a *app) repl(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	if f, ok := stdin.(*os.File); ok && observability.IsTerminal(f) {
		fd := int(f.Fd())
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
			return a.replTerminal(ctx, term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{f, stdout}, replPrompt), stderr)
		}
		a.logger.Slog().Warn("raw mode unavailable, falling back to line input", "err", err)
	}
	return a.replLines(ctx, stdin, stdout, stderr)
}

func (a *app) replTerminal(ctx context.Context, t *term.Terminal, stderr io.Writer) int {
	observability.PrintBanner(t, a.toolNames())
	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return exitOK
		}
		if err != nil {
			fmt.Fprintln(stderr, "repl:", err)
			return exitInternal
		}
		if quit := a.replLine(ctx, t, stderr, line); quit {
			return exitOK
		}
	}
}

func (a *app) replLines(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if quit := a.replLine(ctx, stdout, stderr, scanner.Text()); quit {
			return exitOK
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(stderr, "repl:", err)
		return exitInternal
	}
	return exitOK
}

// replLine handles one input line and reports whether the session should end.
func (a *app) replLine(ctx context.Context, out, stderr io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case ":quit", ":q", ":exit":
		return true
	case ":tools":
		observability.Println(out, strings.Join(a.toolNames(), "\n"))
		return false
	case ":stats":
		observability.PrintStats(out, a.stats.Snapshot())
		return false
	}

	resp, err := a.agent.ProcessChat(ctx, replChatID, line)
	observability.Println(out, resp.Answer)
	if a.verbose {
		printSteps(stderr, resp)
	}
	if err != nil {
		a.logger.Slog().Error("repl query failed", "request_id", resp.RequestID, "err", err)
	}
	return false
}

func (a *app) toolNames() []string {
	var names []string
	for _, t := range a.registry.Tools() {
		names = append(names, t.Name())
	}
	return names
}
