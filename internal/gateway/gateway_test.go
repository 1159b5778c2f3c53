package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type echoHandler struct {
	mu    sync.Mutex
	calls []string
}

func (e *echoHandler) HandleChat(_ context.Context, chatID, query string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, chatID+":"+query)
	return "answer to " + query
}

func TestChatLimiter_PerChat(t *testing.T) {
	l := NewChatLimiter(1, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	assert.True(t, l.Allow("b"))
}

func TestChatLimiter_Unlimited(t *testing.T) {
	l := NewChatLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a"))
	}
}

func TestChatLimiter_EvictsIdleChats(t *testing.T) {
	l := NewChatLimiter(0.01, 1) // one message per 100 minutes
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, l.Allow(id))
	}
	assert.Equal(t, 3, l.Len())

	clock = clock.Add(chatIdleTTL / 2)
	assert.False(t, l.Allow("a"))
	assert.Equal(t, 3, l.Len())

	clock = clock.Add(chatIdleTTL * 3 / 4)
	assert.False(t, l.Allow("a"), "a was active recently and keeps its bucket")
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.Allow("b"), "b was evicted and starts with a full burst")
}

func TestReply(t *testing.T) {
	h := &echoHandler{}
	l := NewChatLimiter(1, 1)
	ctx := context.Background()

	answer, ok := reply(ctx, h, l, "42", "  What is 2 + 2?  ")
	assert.True(t, ok)
	assert.Equal(t, "answer to What is 2 + 2?", answer)

	answer, ok = reply(ctx, h, l, "42", "again")
	assert.True(t, ok)
	assert.Equal(t, throttledReply, answer)

	_, ok = reply(ctx, h, l, "7", "/start")
	assert.False(t, ok)
	_, ok = reply(ctx, h, nil, "7", "   ")
	assert.False(t, ok)

	assert.Equal(t, []string{"42:What is 2 + 2?"}, h.calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("é", 30)
	out := truncate(long, 10)
	assert.Equal(t, 10, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "…"))
}
