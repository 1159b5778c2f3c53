package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rahul/toolagent/internal/agent"
	"github.com/rahul/toolagent/internal/governance"
	"github.com/rahul/toolagent/internal/observability"
	"github.com/rahul/toolagent/internal/store"
	"github.com/rahul/toolagent/internal/tools"
	"github.com/rahul/toolagent/pkg/config"
)

const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
)

const usage = `usage: toolagent [-config path] [-v] <command> [args]

commands:
  invoke <query...>      answer one query and exit
  repl                   interactive session
  tools                  list tools and their argument schemas
  call <tool> <json>     call a tool directly, e.g. call weather '{"city":"Paris"}'
  history [n]            show the last n transcript messages (history must be enabled)
  serve                  run the enabled chat gateways
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app holds everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	stats    *observability.Stats
	registry *tools.Registry
	agent    *agent.Agent
	history  *store.HistoryStore
	verbose  bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("toolagent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "toolagent.yaml", "path to the YAML config file")
	verbose := fs.Bool("v", false, "log every step")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "invoke", "repl", "tools", "call", "history", "serve":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitInternal
	}

	logOut := stderr
	if cmd == "repl" {
		logOut = observability.NewTermWriter(stderr)
	}
	a, err := newApp(cfg, logOut, *verbose)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitInternal
	}
	defer a.close()

	ctx := context.Background()
	switch cmd {
	case "invoke":
		return a.invoke(ctx, rest, stdout, stderr)
	case "repl":
		return a.repl(ctx, stdin, stdout, stderr)
	case "tools":
		return a.listTools(stdout)
	case "call":
		return a.call(ctx, rest, stdout, stderr)
	case "history":
		return a.showHistory(ctx, rest, stdout, stderr)
	default:
		return a.serve(ctx, stderr)
	}
}

func newApp(cfg *config.Config, logOut io.Writer, verbose bool) (*app, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(observability.LoggerOptions{
		Level:      level,
		Format:     cfg.Log.Format,
		EventsFile: cfg.Log.EventsFile,
		Writer:     logOut,
	})
	if err != nil {
		return nil, err
	}

	opts := tools.Options{ExtraCities: cfg.Weather.Cities}
	if cfg.KnowledgeBase.Path != "" {
		entries, err := tools.LoadEntries(cfg.KnowledgeBase.Path)
		if err != nil {
			return nil, err
		}
		opts.KnowledgeEntry = entries
	}
	registry, err := tools.NewDefaultRegistry(opts)
	if err != nil {
		return nil, err
	}

	policy, err := governance.NewPolicyEngine(cfg.Policy.DisabledTools, cfg.Policy.DenyArguments)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		stats:    observability.NewStats(),
		registry: registry,
		verbose:  verbose,
	}
	agentOpts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithPolicy(policy),
		agent.WithStats(a.stats),
	}
	if cfg.History.Enabled {
		a.history, err = store.NewHistoryStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		agentOpts = append(agentOpts, agent.WithHistory(a.history))
	}

	planner := agent.NewPlanner(agent.PlannerOptions{DefaultCity: cfg.Weather.DefaultCity})
	a.agent = agent.New(planner, registry, agentOpts...)
	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Slog().Warn("close history", "err", err)
		}
	}
}

func (a *app) invoke(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		fmt.Fprintln(stderr, "invoke: a query is required")
		return exitUsage
	}

	resp, err := a.agent.Process(ctx, query)
	fmt.Fprintln(stdout, resp.Answer)
	if a.verbose {
		printSteps(stderr, resp)
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitInternal
	}
	return exitOK
}

func printSteps(w io.Writer, resp agent.Response) {
	fmt.Fprintf(w, "request %s rule=%s\n", resp.RequestID, orDash(resp.Rule))
	for _, s := range resp.Steps {
		outcome := s.Result.Text
		if s.Err != nil {
			outcome = "error: " + s.Err.Error()
		}
		argsJSON, _ := json.Marshal(s.Args)
		fmt.Fprintf(w, "  %d. %s %s -> %s (%v)\n", s.Step, s.Tool, argsJSON, outcome, s.Duration)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) listTools(stdout io.Writer) int {
	for _, def := range a.registry.FunctionDefinitions() {
		params, err := json.MarshalIndent(def.Function.Parameters, "  ", "  ")
		if err != nil {
			fmt.Fprintln(stdout, "error:", err)
			return exitInternal
		}
		fmt.Fprintf(stdout, "%s\n  %s\n  %s\n", def.Function.Name, def.Function.Description, params)
	}
	return exitOK
}

func (a *app) call(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "call: usage: call <tool> <json-args>")
		return exitUsage
	}
	id, err := tools.ParseID(args[0])
	if err != nil {
		fmt.Fprintln(stderr, "call:", err)
		return exitUsage
	}
	t, err := a.registry.Resolve(id)
	if err != nil {
		fmt.Fprintln(stderr, "call:", err)
		return exitInternal
	}

	out, err := tools.AsLangchain(t).Call(ctx, args[1])
	if err != nil {
		fmt.Fprintln(stderr, "call:", err)
		if errors.Is(err, tools.ErrInvalidArgument) {
			return exitUsage
		}
		return exitInternal
	}
	fmt.Fprintln(stdout, out)
	return exitOK
}

func (a *app) showHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if a.history == nil {
		fmt.Fprintln(stderr, "history: disabled; set history.enabled in the config")
		return exitInternal
	}
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(stderr, "history: invalid count %q\n", args[0])
			return exitUsage
		}
		limit = n
	}

	msgs, err := a.history.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintln(stderr, "history:", err)
		return exitInternal
	}
	for i, mc := range store.Conversation(msgs) {
		m := msgs[i]
		fmt.Fprintf(stdout, "%s [%s] %-5s %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), orDash(m.ChatID), mc.Role, m.Content)
	}
	return exitOK
}
