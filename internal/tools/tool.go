package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ID identifies one of the built-in tools. The set is closed: adding a tool
// means adding a constant here and registering it in NewDefaultRegistry.
type ID int

const (
	Calculator ID = iota + 1
	Weather
	KnowledgeBase
	UnitConverter
	Translator
)

var idNames = map[ID]string{
	Calculator:    "calculator",
	Weather:       "weather",
	KnowledgeBase: "kb",
	UnitConverter: "unitconv",
	Translator:    "translator",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "tool(" + strconv.Itoa(int(id)) + ")"
}

// ParseID maps a tool name back to its identifier.
func ParseID(name string) (ID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Args are the named string arguments of a single tool invocation.
type Args map[string]string

// Result is the successful half of a tool execution. Numeric results also
// carry Value so later plan steps can compute with them.
type Result struct {
	Tool    ID
	Text    string
	Value   float64
	Numeric bool
}

func textResult(id ID, text string) Result {
	return Result{Tool: id, Text: text}
}

func numberResult(id ID, text string, v float64) Result {
	return Result{Tool: id, Text: text, Value: v, Numeric: true}
}

// Tool defines the interface for all agent capabilities.
type Tool interface {
	ID() ID
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, args Args) (Result, error)
}

// Registry manages the set of available tools. It is populated once at
// start-up and only read afterwards.
type Registry struct {
	tools map[ID]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[ID]Tool),
	}
}

func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.ID()]; exists {
		return fmt.Errorf("tool %s already registered", t.ID())
	}
	r.tools[t.ID()] = t
	return nil
}

// Resolve returns the tool registered under id or ErrUnknownTool.
func (r *Registry) Resolve(id ID) (Tool, error) {
	t, ok := r.tools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}
	return t, nil
}

// Tools lists the registered tools ordered by identifier.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Options configures the built-in tools.
type Options struct {
	ExtraCities    map[string]float64
	KnowledgeEntry []Entry
}

// NewDefaultRegistry registers every built-in tool. It is the single place
// where the tool set is assembled.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	weather := NewWeatherTool()
	for city, temp := range opts.ExtraCities {
		weather.SetTemperature(city, temp)
	}

	kb := NewKnowledgeBaseTool()
	for _, e := range opts.KnowledgeEntry {
		kb.AddEntry(e.Name, e.Summary)
	}

	calc, err := NewCalculatorTool()
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, t := range []Tool{calc, weather, kb, NewUnitConverterTool(), NewTranslatorTool()} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// foldKey lower-cases s and collapses runs of whitespace, giving the lookup
// key used by the name-keyed tools.
func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
