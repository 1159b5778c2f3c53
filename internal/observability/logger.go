package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeQuery       EventType = "query"
	EventTypePlan        EventType = "plan"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeGateway     EventType = "gateway"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// LoggerOptions configures NewLogger. Level is one of debug, info, warn or
// error; Format is text or json.
type LoggerOptions struct {
	Level      string
	Format     string
	EventsFile string
	MaxSize    int64
	Writer     io.Writer
}

// Logger writes events through slog and, when EventsFile is set, appends them
// as JSON lines to that file.
type Logger struct {
	slog *slog.Logger

	mu         sync.Mutex
	eventsPath string
	maxSize    int64
}

func NewLogger(opts LoggerOptions) (*Logger, error) {
	var level slog.Level
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024 // 10MB
	}
	return &Logger{
		slog:       slog.New(handler),
		eventsPath: opts.EventsFile,
		maxSize:    maxSize,
	}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Slog exposes the underlying logger for packages that log plain messages.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	attrs := make([]slog.Attr, 0, 3)
	if evt.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", evt.RequestID))
	}
	if evt.ChatID != "" {
		attrs = append(attrs, slog.String("chat_id", evt.ChatID))
	}
	if evt.Data != nil {
		attrs = append(attrs, slog.Any("data", evt.Data))
	}
	l.slog.LogAttrs(context.Background(), eventLevel(evt), string(evt.Type), attrs...)

	if l.eventsPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.slog.Error("marshal event", "type", evt.Type, "err", err)
			return
		}
		l.writeToFile(data)
	}
}

func eventLevel(evt Event) slog.Level {
	switch evt.Type {
	case EventTypeToolResult, EventTypeQuery:
		if m, ok := evt.Data.(map[string]any); ok && m["error"] != nil {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	case EventTypePolicyCheck:
		return slog.LevelWarn
	case EventTypeGateway:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.eventsPath), 0755); err != nil {
		l.slog.Error("create events directory", "err", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.eventsPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotate()
	}

	f, err := os.OpenFile(l.eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.slog.Error("open events file", "path", l.eventsPath, "err", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.slog.Error("write events file", "path", l.eventsPath, "err", err)
	}
}

// rotate keeps a single .old file.
func (l *Logger) rotate() {
	oldPath := l.eventsPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.eventsPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogQuery(requestID, chatID, query, rule string, dur time.Duration, err error) {
	data := map[string]any{
		"query":       query,
		"rule":        rule,
		"duration_ms": dur.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeQuery, RequestID: requestID, ChatID: chatID, Data: data})
}

func (l *Logger) LogPlan(requestID, rule string, tools []string) {
	l.Log(Event{
		Type:      EventTypePlan,
		RequestID: requestID,
		Data: map[string]any{
			"rule":  rule,
			"steps": tools,
		},
	})
}

func (l *Logger) LogToolCall(requestID string, step int, tool string, args map[string]string) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		RequestID: requestID,
		Data: map[string]any{
			"step": step,
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(requestID string, step int, tool, output string, dur time.Duration, err error) {
	data := map[string]any{
		"step":        step,
		"tool":        tool,
		"duration_ms": float64(dur.Microseconds()) / 1000,
	}
	if err != nil {
		data["error"] = err.Error()
	} else {
		data["output"] = output
	}
	l.Log(Event{Type: EventTypeToolResult, RequestID: requestID, Data: data})
}

func (l *Logger) LogPolicyCheck(requestID, tool, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		RequestID: requestID,
		Data: map[string]any{
			"tool":   tool,
			"reason": reason,
		},
	})
}

func (l *Logger) LogGateway(gateway, chatID, msg string) {
	l.Log(Event{
		Type:   EventTypeGateway,
		ChatID: chatID,
		Data:   map[string]any{"gateway": gateway, "message": msg},
	})
}
