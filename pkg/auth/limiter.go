package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// DialLimiter rate-limits connection attempts per client IP, guarding the
// token-verify and user-lookup path from dial storms.
type DialLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func NewDialLimiter(rps float64, burst int) *DialLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &DialLimiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *DialLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether another attempt from key may proceed now.
func (p *DialLimiter) Allow(key string) bool {
	return p.get(key).Allow()
}
