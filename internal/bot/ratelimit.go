package bot

import (
	"sync"
	"time"
)

// RateLimiter ограничение частоты команд и кнопок на пользователя в памяти процесса
type RateLimiter struct {
	mu       sync.Mutex
	lastCall map[int64]map[string]time.Time
	limits   map[string]time.Duration
	fallback time.Duration
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastCall: make(map[int64]map[string]time.Time),
		limits: map[string]time.Duration{
			"/start":            2 * time.Second,
			"/my_subscriptions": 5 * time.Second,
			"tariff":            10 * time.Second,
			"refresh_subs":      5 * time.Second,
		},
		fallback: time.Second,
		now:      time.Now,
	}
}

// IsLimited true, если пользователь обращается к key чаще лимита. Админов проверяет вызывающий.
func (r *RateLimiter) IsLimited(userID int64, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.lastCall[userID] == nil {
		r.lastCall[userID] = make(map[string]time.Time)
	}
	limit, ok := r.limits[key]
	if !ok {
		limit = r.fallback
	}
	if now.Sub(r.lastCall[userID][key]) < limit {
		return true
	}
	r.lastCall[userID][key] = now
	return false
}

// Prune удаляет записи старше максимального лимита, чтобы карта не росла бесконечно
func (r *RateLimiter) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxLimit := r.fallback
	for _, l := range r.limits {
		maxLimit = max(maxLimit, l)
	}
	cutoff := r.now().Add(-maxLimit)
	for user, calls := range r.lastCall {
		for key, at := range calls {
			if at.Before(cutoff) {
				delete(calls, key)
			}
		}
		if len(calls) == 0 {
			delete(r.lastCall, user)
		}
	}
}
