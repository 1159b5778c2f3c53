package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/toolagent/internal/governance"
	"github.com/rahul/toolagent/internal/observability"
	"github.com/rahul/toolagent/internal/store"
	"github.com/rahul/toolagent/internal/tools"
)

var (
	// ErrEmptyQuery is reported for queries with no text after normalisation.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnrecognizedQuery is reported when no planner rule matches.
	ErrUnrecognizedQuery = errors.New("query not understood")
	// ErrPolicyDenied wraps a step refused by the policy engine.
	ErrPolicyDenied = errors.New("denied by policy")
	// ErrInternal marks faults in the agent itself rather than in the query.
	ErrInternal = errors.New("internal error")
)

const (
	MsgEmptyQuery   = "Please provide a question or query."
	MsgUnrecognized = "Sorry, I could not understand your question. Try arithmetic, weather, people, unit conversions or translations."
	MsgInternal     = "Sorry, something went wrong while handling your request."
	msgStepFailed   = "Sorry, I couldn't complete that: "
)

// HistoryStore records finished exchanges.
type HistoryStore interface {
	AddMessages(ctx context.Context, msgs ...store.Message) error
}

// StepResult is the outcome of one executed invocation.
type StepResult struct {
	Step     int
	Tool     tools.ID
	Args     tools.Args
	Result   tools.Result
	Err      error
	Duration time.Duration
}

// Response is the structured outcome of one query.
type Response struct {
	RequestID string
	Query     string
	Answer    string
	Success   bool
	Tool      tools.ID
	Rule      string
	Steps     []StepResult
	Err       error
}

// Agent plans a query, runs the plan against the registry and renders the
// answer. It holds no per-query state and may be shared between goroutines.
type Agent struct {
	planner  *Planner
	registry *tools.Registry
	policy   governance.PolicyEngine
	history  HistoryStore
	logger   *observability.Logger
	stats    *observability.Stats
	newID    func() string
}

// Option configures an Agent.
type Option func(*Agent)

// WithPolicy checks every step against p before it runs.
func WithPolicy(p governance.PolicyEngine) Option {
	return func(a *Agent) { a.policy = p }
}

// WithHistory records each query and its answer in h.
func WithHistory(h HistoryStore) Option {
	return func(a *Agent) { a.history = h }
}

// WithLogger sets the event logger; the default discards.
func WithLogger(l *observability.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithStats counts query outcomes in s.
func WithStats(s *observability.Stats) Option {
	return func(a *Agent) { a.stats = s }
}

// New returns an agent that plans with planner and dispatches to registry.
// Without options every step is allowed and nothing is logged or recorded.
func New(planner *Planner, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		planner:  planner,
		registry: registry,
		policy:   governance.AllowAll{},
		logger:   observability.Discard(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the tools the agent dispatches to.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Handle answers query and never fails: internal faults are logged and
// rendered as a generic apology.
func (a *Agent) Handle(ctx context.Context, query string) string {
	return a.HandleChat(ctx, "", query)
}

// HandleChat is Handle for a gateway conversation.
func (a *Agent) HandleChat(ctx context.Context, chatID, query string) string {
	resp, _ := a.ProcessChat(ctx, chatID, query)
	return resp.Answer
}

// Process answers query. The returned error is non-nil only for internal
// faults; unrecognised queries and failing tools are reported through the
// Response.
func (a *Agent) Process(ctx context.Context, query string) (Response, error) {
	return a.ProcessChat(ctx, "", query)
}

// ProcessChat is Process for a gateway conversation; chatID is recorded
// with the history and passed to the policy engine.
func (a *Agent) ProcessChat(ctx context.Context, chatID, query string) (resp Response, err error) {
	start := time.Now()
	resp = Response{RequestID: a.newID(), Query: query}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
		if err != nil {
			resp.Success = false
			resp.Err = err
			resp.Answer = MsgInternal
		}
		a.finish(ctx, chatID, resp, time.Since(start))
	}()

	q := NormalizeQuery(query)
	if q.Empty() {
		resp.Answer = MsgEmptyQuery
		resp.Err = ErrEmptyQuery
		return resp, nil
	}

	plan := a.planner.PlanQuery(q)
	resp.Rule = plan.Rule
	if plan.Empty() {
		resp.Answer = MsgUnrecognized
		resp.Err = ErrUnrecognizedQuery
		return resp, nil
	}
	if err := plan.Validate(); err != nil {
		return resp, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	a.logger.LogPlan(resp.RequestID, plan.Rule, planTools(plan))

	for i, inv := range plan.Steps {
		step, err := a.runStep(ctx, resp.RequestID, chatID, i+1, inv, resp.Steps)
		resp.Steps = append(resp.Steps, step)
		resp.Tool = inv.Tool
		if err != nil {
			if errors.Is(err, tools.ErrUnknownTool) || errors.Is(err, ErrInternal) {
				return resp, err
			}
			resp.Answer = msgStepFailed + err.Error()
			resp.Err = err
			return resp, nil
		}
	}

	resp.Success = true
	resp.Answer = resp.Steps[len(resp.Steps)-1].Result.Text
	return resp, nil
}

func (a *Agent) runStep(ctx context.Context, requestID, chatID string, n int, inv Invocation, done []StepResult) (StepResult, error) {
	step := StepResult{Step: n, Tool: inv.Tool}

	tool, err := a.registry.Resolve(inv.Tool)
	if err != nil {
		step.Err = err
		return step, err
	}
	args, err := substitute(inv.Args, done)
	if err != nil {
		step.Err = err
		return step, err
	}
	step.Args = args

	decision, err := a.policy.Evaluate(ctx, governance.Request{Tool: inv.Tool, Args: args, ChatID: chatID})
	if err != nil {
		step.Err = fmt.Errorf("%w: policy: %v", ErrInternal, err)
		return step, step.Err
	}
	if decision.Effect == governance.EffectDeny {
		a.logger.LogPolicyCheck(requestID, inv.Tool.String(), decision.Reason)
		step.Err = fmt.Errorf("%w: %s", ErrPolicyDenied, decision.Reason)
		return step, step.Err
	}

	if err := ctx.Err(); err != nil {
		step.Err = err
		return step, err
	}

	a.logger.LogToolCall(requestID, n, inv.Tool.String(), args)
	started := time.Now()
	step.Result, step.Err = tool.Execute(ctx, args)
	step.Duration = time.Since(started)
	a.logger.LogToolResult(requestID, n, inv.Tool.String(), step.Result.Text, step.Duration, step.Err)
	return step, step.Err
}

// substitute replaces {{stepN}} placeholders with the results of earlier
// steps. Numeric results are inserted as plain numbers so they can feed a
// calculator expression.
func substitute(args tools.Args, done []StepResult) (tools.Args, error) {
	out := make(tools.Args, len(args))
	var missing error
	for k, v := range args {
		out[k] = stepRefPattern.ReplaceAllStringFunc(v, func(ref string) string {
			n, _ := strconv.Atoi(stepRefPattern.FindStringSubmatch(ref)[1])
			if n < 1 || n > len(done) {
				missing = fmt.Errorf("%w: unresolved reference %s", ErrInternal, ref)
				return ref
			}
			r := done[n-1].Result
			if r.Numeric {
				return tools.FormatNumber(r.Value)
			}
			return r.Text
		})
	}
	if missing != nil {
		return nil, missing
	}
	return out, nil
}

func planTools(p Plan) []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Tool.String()
	}
	return names
}

func (a *Agent) finish(ctx context.Context, chatID string, resp Response, dur time.Duration) {
	a.logger.LogQuery(resp.RequestID, chatID, resp.Query, resp.Rule, dur, resp.Err)

	if a.stats != nil {
		a.stats.Record(outcome(resp), resp.RequestID)
	}

	if a.history == nil {
		return
	}
	var toolName string
	if len(resp.Steps) > 0 {
		toolName = resp.Tool.String()
	}
	err := a.history.AddMessages(ctx,
		store.Message{RequestID: resp.RequestID, ChatID: chatID, Role: llms.ChatMessageTypeHuman, Content: resp.Query, Rule: resp.Rule},
		store.Message{RequestID: resp.RequestID, ChatID: chatID, Role: llms.ChatMessageTypeAI, Content: resp.Answer, Tool: toolName, Rule: resp.Rule, Success: resp.Success},
	)
	if err != nil {
		a.logger.Slog().Warn("record history", "request_id", resp.RequestID, "err", err)
	}
}

func outcome(resp Response) observability.Outcome {
	switch {
	case resp.Success:
		return observability.OutcomeAnswered
	case errors.Is(resp.Err, ErrInternal), errors.Is(resp.Err, tools.ErrUnknownTool):
		return observability.OutcomeError
	case errors.Is(resp.Err, ErrUnrecognizedQuery), errors.Is(resp.Err, ErrEmptyQuery):
		return observability.OutcomeUnrecognized
	default:
		return observability.OutcomeFailed
	}
}
