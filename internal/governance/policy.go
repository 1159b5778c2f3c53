package governance

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/rahul/toolagent/internal/tools"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a tool call to be evaluated.
type Request struct {
	Tool   tools.ID
	Args   tools.Args
	ChatID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies listed tools and any call whose argument values
// match one of the denied patterns.
type DefaultPolicyEngine struct {
	DeniedTools map[tools.ID]bool
	DeniedRegex []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedTools: make(map[tools.ID]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

// NewPolicyEngine builds an engine from tool names and argument patterns as
// they appear in the config file.
func NewPolicyEngine(disabledTools, deniedArguments []string) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, name := range disabledTools {
		id, err := tools.ParseID(name)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		e.DenyTool(id)
	}
	for _, pattern := range deniedArguments {
		if err := e.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("policy: deny pattern %q: %w", pattern, err)
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyTool(id tools.ID) {
	e.DeniedTools[id] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedTools[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("tool %q is disabled by policy", req.Tool),
		}, nil
	}

	keys := make([]string, 0, len(req.Args))
	for k := range req.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, re := range e.DeniedRegex {
		for _, k := range keys {
			if re.MatchString(req.Args[k]) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("argument %s matches restricted pattern %s", k, re.String()),
				}, nil
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "approved by default policy",
	}, nil
}

// AllowAll is the engine used when no policy is configured.
type AllowAll struct{}

func (AllowAll) Evaluate(context.Context, Request) (Result, error) {
	return Result{Effect: EffectAllow}, nil
}
