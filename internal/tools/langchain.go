package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	lctools "github.com/tmc/langchaingo/tools"
)

// callable adapts a Tool to the langchaingo tools.Tool interface. Input is a
// JSON object of string arguments, e.g. {"city":"Paris"}.
type callable struct {
	tool Tool
}

var _ lctools.Tool = callable{}

// AsLangchain wraps t so it can be handed to langchaingo agents and executors.
func AsLangchain(t Tool) lctools.Tool {
	return callable{tool: t}
}

func (c callable) Name() string { return c.tool.Name() }

func (c callable) Description() string { return c.tool.Description() }

func (c callable) Call(ctx context.Context, input string) (string, error) {
	args, err := DecodeArgs(input)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.tool.Name(), err)
	}
	res, err := c.tool.Execute(ctx, args)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// DecodeArgs parses a JSON object into Args. Number and boolean values are
// kept in their JSON text form.
func DecodeArgs(input string) (Args, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidArgument, err)
	}
	args := make(Args, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			args[k] = s
			continue
		}
		args[k] = string(v)
	}
	return args, nil
}

// FunctionDefinitions describes every registered tool in the function-calling
// format used by langchaingo models.
func (r *Registry) FunctionDefinitions() []llms.Tool {
	var out []llms.Tool
	for _, t := range r.Tools() {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}
