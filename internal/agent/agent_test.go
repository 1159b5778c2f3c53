package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/toolagent/internal/governance"
	"github.com/rahul/toolagent/internal/observability"
	"github.com/rahul/toolagent/internal/store"
	"github.com/rahul/toolagent/internal/tools"
)

func newTestAgent(t *testing.T, opts ...Option) *Agent {
	t.Helper()
	registry, err := tools.NewDefaultRegistry(tools.Options{})
	require.NoError(t, err)
	return New(NewPlanner(PlannerOptions{}), registry, opts...)
}

func TestAgent_CompositeAverageTemperature(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "Add 10 to the average temperature in Paris and London")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "27.5", resp.Answer)
	assert.Equal(t, "average_temperature", resp.Rule)
	assert.Equal(t, tools.Calculator, resp.Tool)
	assert.NotEmpty(t, resp.RequestID)

	require.Len(t, resp.Steps, 4)
	assert.Equal(t, tools.Weather, resp.Steps[0].Tool)
	assert.Equal(t, 18.0, resp.Steps[0].Result.Value)
	assert.Equal(t, 17.0, resp.Steps[1].Result.Value)
	assert.Equal(t, tools.Args{"expr": "(18 + 17) / 2"}, resp.Steps[2].Args)
	assert.Equal(t, "17.5", resp.Steps[2].Result.Text)
	assert.Equal(t, tools.Args{"expr": "17.5 + 10"}, resp.Steps[3].Args)
}

func TestAgent_Answers(t *testing.T) {
	a := newTestAgent(t)

	tests := map[string]string{
		"What is 15% of 80?":                     "12",
		"What is 2 + 2?":                         "4",
		"What's the weather in Paris?":           "18 °C",
		"weather in amsterdam":                   "19.5 °C",
		"Convert 100 usd to eur":                 "90",
		`Translate "hello" to Spanish`:           "hola",
		"What is the average of 27, 31 and 42.5": "33.5",
		"divide 10 by 4":                         "2.5",
	}
	for query, want := range tests {
		t.Run(query, func(t *testing.T) {
			assert.Equal(t, want, a.Handle(context.Background(), query))
		})
	}

	answer := a.Handle(context.Background(), "Who is Alan Turing?")
	assert.Contains(t, answer, "theoretical computer science")
}

func TestAgent_Unrecognized(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "blorp fizzle wump")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, MsgUnrecognized, resp.Answer)
	assert.ErrorIs(t, resp.Err, ErrUnrecognizedQuery)
	assert.Empty(t, resp.Steps)
}

func TestAgent_EmptyQuery(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, MsgEmptyQuery, resp.Answer)
	assert.ErrorIs(t, resp.Err, ErrEmptyQuery)
}

func TestAgent_ToolFailures(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "Convert 5 kg to Celsius")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Err, tools.ErrToolExecution)
	assert.True(t, strings.HasPrefix(resp.Answer, "Sorry, I couldn't complete that: "), resp.Answer)
	assert.Contains(t, resp.Answer, "cannot convert kg (weight) to c (temperature)")
	assert.Equal(t, tools.UnitConverter, resp.Tool)

	resp, err = a.Process(context.Background(), "What is 2 ** 3")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, tools.ErrInvalidArgument)

	resp, err = a.Process(context.Background(), "What is the weather in Atlantis")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, tools.ErrToolExecution)
}

func TestAgent_FailingStepAbortsPlan(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "Add 10 to the average temperature in Paris and Gotham")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.Len(t, resp.Steps, 2)
	assert.NoError(t, resp.Steps[0].Err)
	assert.ErrorIs(t, resp.Steps[1].Err, tools.ErrToolExecution)
}

func TestAgent_PolicyDenied(t *testing.T) {
	engine := governance.NewDefaultPolicyEngine()
	engine.DenyTool(tools.Weather)
	a := newTestAgent(t, WithPolicy(engine))

	resp, err := a.Process(context.Background(), "What's the weather in Paris?")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, ErrPolicyDenied)
	assert.Contains(t, resp.Answer, "disabled by policy")

	assert.Equal(t, "4", a.Handle(context.Background(), "2 + 2"))
}

type panickyTool struct{}

func (panickyTool) ID() tools.ID { return tools.Calculator }
func (panickyTool) Name() string { return "calculator" }
func (panickyTool) Description() string { return "panics" }
func (panickyTool) Parameters() map[string]any { return nil }
func (panickyTool) Execute(context.Context, tools.Args) (tools.Result, error) {
	panic("boom")
}

func TestAgent_TypedPlaceholdersAreNotInternalFaults(t *testing.T) {
	a := newTestAgent(t)

	resp, err := a.Process(context.Background(), "What is 2 + {{step1}}")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Err, tools.ErrInvalidArgument)
	assert.NotEqual(t, MsgInternal, resp.Answer)

	resp, err = a.Process(context.Background(), "Who is {{step1}}?")
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, tools.ErrToolExecution)
	assert.True(t, strings.HasPrefix(resp.Answer, "Sorry, I couldn't complete that: "), resp.Answer)
}

func TestAgent_WeatherTrailingFiller(t *testing.T) {
	a := newTestAgent(t)
	assert.Equal(t, "18 °C", a.Handle(context.Background(), "What's the weather in Paris at the moment?"))
	assert.Equal(t, "17 °C", a.Handle(context.Background(), "temperature in london right now please"))
}

func TestAgent_InternalFaults(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(panickyTool{}))
	stats := observability.NewStats()
	a := New(NewPlanner(PlannerOptions{}), registry, WithStats(stats))

	resp, err := a.Process(context.Background(), "What is 1 + 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, MsgInternal, resp.Answer)
	assert.Equal(t, MsgInternal, a.Handle(context.Background(), "What is 1 + 1"))

	resp, err = a.Process(context.Background(), "What's the weather in Paris?")
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
	assert.Equal(t, MsgInternal, resp.Answer)

	snap := stats.Snapshot()
	assert.Equal(t, 3, snap.Counts[observability.OutcomeError])
}

type memoryHistory struct {
	mu   sync.Mutex
	msgs []store.Message
	err  error
}

func (m *memoryHistory) AddMessages(_ context.Context, msgs ...store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msgs...)
	return m.err
}

func TestAgent_RecordsHistory(t *testing.T) {
	h := &memoryHistory{}
	stats := observability.NewStats()
	a := newTestAgent(t, WithHistory(h), WithStats(stats))
	a.newID = func() string { return "req-1" }

	answer := a.HandleChat(context.Background(), "chat-9", "What is 6 * 7?")
	assert.Equal(t, "42", answer)

	require.Len(t, h.msgs, 2)
	assert.Equal(t, store.Message{RequestID: "req-1", ChatID: "chat-9", Role: llms.ChatMessageTypeHuman, Content: "What is 6 * 7?", Rule: "arithmetic"}, h.msgs[0])
	assert.Equal(t, store.Message{RequestID: "req-1", ChatID: "chat-9", Role: llms.ChatMessageTypeAI, Content: "42", Tool: "calculator", Rule: "arithmetic", Success: true}, h.msgs[1])

	h.err = errors.New("disk full")
	assert.Equal(t, MsgUnrecognized, a.Handle(context.Background(), "hmm"))

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Counts[observability.OutcomeAnswered])
	assert.Equal(t, 1, snap.Counts[observability.OutcomeUnrecognized])
	assert.Equal(t, "req-1", snap.LastRequest)
}

func TestAgent_ConcurrentHandle(t *testing.T) {
	a := newTestAgent(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "27.5", a.Handle(context.Background(), "Add 10 to the average temperature in Paris and London"))
		}()
	}
	wg.Wait()
}

func TestSubstitute(t *testing.T) {
	done := []StepResult{
		{Result: tools.Result{Text: "18 °C", Value: 18, Numeric: true}},
		{Result: tools.Result{Text: "hola"}},
	}
	out, err := substitute(tools.Args{"expr": "{{step1}} * 2", "text": "{{step2}}!"}, done)
	require.NoError(t, err)
	assert.Equal(t, tools.Args{"expr": "18 * 2", "text": "hola!"}, out)

	_, err = substitute(tools.Args{"expr": "{{step3}}"}, done)
	assert.ErrorIs(t, err, ErrInternal)
}
