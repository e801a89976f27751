package pieceserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenBucket throttles piece requests. A nil bucket allows everything.
type tokenBucket struct {
	mu           sync.Mutex
	tokens       int64
	capacity     int64
	refillPerSec float64
	last         time.Time
}

func newTokenBucket(capacity int64, refillPerSec float64) *tokenBucket {
	if capacity <= 0 || refillPerSec <= 0 {
		return nil
	}
	return &tokenBucket{capacity: capacity, refillPerSec: refillPerSec}
}

func (b *tokenBucket) refill(now time.Time) {
	if b.last.IsZero() {
		b.last = now
		b.tokens = b.capacity
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	if add := int64(elapsed * b.refillPerSec); add > 0 {
		b.tokens += add
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
}

func (b *tokenBucket) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func rateLimit(b *tokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/piece/") && !b.allow() {
			metricRateLimited.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":          "rate_limited",
				"retry_after_ms": 1000,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
