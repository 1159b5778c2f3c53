package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Options(t *testing.T) {
	_, err := NewLogger(LoggerOptions{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(LoggerOptions{Format: "xml"})
	assert.Error(t, err)

	var buf bytes.Buffer
	l, err := NewLogger(LoggerOptions{Level: "warn", Format: "json", Writer: &buf})
	require.NoError(t, err)

	l.LogPlan("r1", "arithmetic", []string{"calculator"})
	assert.Empty(t, buf.String(), "plan events are debug")

	l.LogPolicyCheck("r1", "weather", "disabled")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "policy_check", line["msg"])
	assert.Equal(t, "r1", line["request_id"])
}

func TestLogger_EventsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	var buf bytes.Buffer
	l, err := NewLogger(LoggerOptions{EventsFile: path, Writer: &buf})
	require.NoError(t, err)

	l.LogToolCall("r1", 1, "calculator", map[string]string{"expr": "2 + 2"})
	l.LogToolResult("r1", 1, "calculator", "4", time.Millisecond, nil)
	l.LogQuery("r1", "", "2 + 2", "arithmetic", time.Millisecond, errors.New("boom"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var types []EventType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var evt Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		assert.Equal(t, "r1", evt.RequestID)
		assert.False(t, evt.Timestamp.IsZero())
		types = append(types, evt.Type)
	}
	assert.Equal(t, []EventType{EventTypeToolCall, EventTypeToolResult, EventTypeQuery}, types)
	assert.Contains(t, buf.String(), "level=WARN msg=query")
}

func TestLogger_Rotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l, err := NewLogger(LoggerOptions{EventsFile: path, MaxSize: 1, Writer: &bytes.Buffer{}})
	require.NoError(t, err)

	l.LogGateway("telegram", "1", "first")
	l.LogGateway("telegram", "1", "second")

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Contains(t, string(old), "first")

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(cur), "second")
	assert.NotContains(t, string(cur), "first")
}

func TestStats(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				s.Record(OutcomeFailed, "r")
				return
			}
			s.Record(OutcomeAnswered, "r")
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 20, snap.Total)
	assert.Equal(t, 15, snap.Counts[OutcomeAnswered])
	assert.Equal(t, 5, snap.Counts[OutcomeFailed])
	assert.Equal(t, "r", snap.LastRequest)

	snap.Counts[OutcomeAnswered] = 0
	assert.Equal(t, 15, s.Snapshot().Counts[OutcomeAnswered])
}

func TestPrintBannerAndStats(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, []string{"calculator", "weather"})
	assert.Contains(t, buf.String(), "tools: calculator, weather")
	assert.NotContains(t, buf.String(), colorReset, "no colour outside a terminal")

	buf.Reset()
	s := NewStats()
	s.Record(OutcomeAnswered, "abc")
	PrintStats(&buf, s.Snapshot())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "stats queries: 1 [answered=1]", lines[0])
	assert.Contains(t, lines[1], "abc")
}
