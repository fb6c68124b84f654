package utils

import (
	"sync"
	"time"
)

// RateLimiter ограничивает число запросов на ключ в скользящем окне
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Limit максимальное число запросов в окне
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Allow проверяет, разрешен ли запрос, и учитывает его
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.pruneLocked(key, now)

	// Проверяем лимит
	if len(valid) >= rl.limit {
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Reset сбрасывает счетчик для ключа
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

// GetRemaining возвращает количество оставшихся запросов
func (rl *RateLimiter) GetRemaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(rl.pruneLocked(key, rl.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetResetTime возвращает момент, когда освободится самый старый слот
func (rl *RateLimiter) GetResetTime(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.pruneLocked(key, rl.now())
	if len(valid) == 0 {
		return rl.now()
	}
	return valid[0].Add(rl.window)
}

// pruneLocked удаляет запросы вне окна. Вызывается под rl.mu.
func (rl *RateLimiter) pruneLocked(key string, now time.Time) []time.Time {
	windowStart := now.Add(-rl.window)
	requests := rl.requests[key]

	i := 0
	for i < len(requests) && !requests[i].After(windowStart) {
		i++
	}
	valid := requests[i:]
	if len(valid) == 0 {
		delete(rl.requests, key)
		return nil
	}
	rl.requests[key] = valid
	return valid
}
