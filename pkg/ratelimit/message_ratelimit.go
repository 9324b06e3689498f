package ratelimit

import (
	"sync"
	"time"
)

type messageBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero: not cooling down
}

// MessageRateLimiter caps sends per user: maxMessages per window, and once
// the cap is exceeded every send is refused until cooldown has passed.
type MessageRateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*messageBucket
	maxMessages int
	window      time.Duration
	cooldown    time.Duration
	stopCleanup chan struct{}
}

func NewMessageRateLimiter(maxMessages int, window, cooldown time.Duration) *MessageRateLimiter {
	rl := &MessageRateLimiter{
		buckets:     make(map[string]*messageBucket),
		maxMessages: maxMessages,
		window:      window,
		cooldown:    cooldown,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *MessageRateLimiter) Allow(userID string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[userID]
	if exists && now.Before(b.cooldownUntil) {
		return false
	}
	if !exists || !b.cooldownUntil.IsZero() || now.Sub(b.windowStart) > rl.window {
		rl.buckets[userID] = &messageBucket{count: 1, windowStart: now}
		return true
	}

	b.count++
	if b.count > rl.maxMessages {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}
	return true
}

// CooldownSeconds is the Retry-After value for a throttled user, 0 when
// the user is not cooling down.
func (rl *MessageRateLimiter) CooldownSeconds(userID string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, exists := rl.buckets[userID]
	if !exists {
		return 0
	}
	return retryAfterSeconds(time.Until(b.cooldownUntil))
}

func (rl *MessageRateLimiter) Close() {
	close(rl.stopCleanup)
}

func (rl *MessageRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *MessageRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window && now.After(b.cooldownUntil) {
			delete(rl.buckets, userID)
		}
	}
}
