package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatIdleTTL is how long a chat may stay silent before its bucket is dropped.
const chatIdleTTL = 10 * time.Minute

type chatBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// ChatLimiter throttles each chat independently with a token bucket. Buckets
// of chats idle for longer than chatIdleTTL are evicted.
type ChatLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*chatBucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewChatLimiter allows perMinute messages per chat with the given burst.
// A non-positive perMinute disables throttling.
func NewChatLimiter(perMinute float64, burst int) *ChatLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Duration(float64(time.Minute) / perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &ChatLimiter{
		buckets: make(map[string]*chatBucket),
		limit:   limit,
		burst:   burst,
		idleTTL: chatIdleTTL,
		now:     time.Now,
	}
}

// Allow reports whether chatID may send a message now.
func (c *ChatLimiter) Allow(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idleTTL {
		c.sweep(now)
	}

	b, ok := c.buckets[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[chatID] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. A dropped chat starts again with a full burst.
func (c *ChatLimiter) sweep(now time.Time) {
	for id, b := range c.buckets {
		if now.Sub(b.seen) >= c.idleTTL {
			delete(c.buckets, id)
		}
	}
	c.lastSweep = now
}

// Len returns the number of chats currently tracked.
func (c *ChatLimiter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
