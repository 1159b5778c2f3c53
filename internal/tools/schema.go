package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// argSchema pairs the JSON Schema reflected from a tool's argument struct with
// its compiled validator.
type argSchema struct {
	doc      map[string]any
	compiled *validator.Schema
}

func newArgSchema[T any](name string) (*argSchema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	var v T
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s schema: %w", name, err)
	}

	c := validator.NewCompiler()
	c.Draft = validator.Draft2020
	url := fmt.Sprintf("https://toolagent.local/tools/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("load %s schema: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &argSchema{doc: doc, compiled: compiled}, nil
}

func mustArgSchema[T any](name string) *argSchema {
	s, err := newArgSchema[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks args against the schema and wraps violations in
// ErrInvalidArgument.
func (s *argSchema) Validate(tool ID, args Args) error {
	params := make(map[string]any, len(args))
	for k, v := range args {
		params[k] = v
	}
	if err := s.compiled.Validate(params); err != nil {
		var verr *validator.ValidationError
		msg := err.Error()
		if errors.As(err, &verr) {
			msg = leafMessage(verr)
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, tool, msg)
	}
	return nil
}

// Parameters returns the reflected JSON Schema document.
func (s *argSchema) Parameters() map[string]any {
	return s.doc
}

// leafMessage returns the innermost cause of a validation failure.
func leafMessage(verr *validator.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	loc := strings.TrimPrefix(verr.InstanceLocation, "/")
	if loc == "" {
		return verr.Message
	}
	return loc + ": " + verr.Message
}
