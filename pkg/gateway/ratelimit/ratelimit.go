// Package ratelimit implements per-principal request limits: a token bucket
// for request rate and semaphores for concurrency. Single-process,
// in-memory; entries are garbage collected on a TTL so the map stays
// bounded.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	MaxConcurrentRequests int
	MaxConcurrentStreams  int

	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*principalLimiter
}

type principalLimiter struct {
	mu sync.Mutex

	tokens float64
	last   time.Time

	reqSem    chan struct{}
	streamSem chan struct{}

	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*principalLimiter),
	}
}

// PrincipalKeyFromAPIKey hashes an API key into a stable limiter key so raw
// keys never sit in the limiter map.
func PrincipalKeyFromAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "k_" + hex.EncodeToString(sum[:16])
}

type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

// AcquireRequest admits one HTTP request for the principal.
func (l *Limiter) AcquireRequest(principal string, now time.Time) Decision {
	pl := l.getOrCreate(principal, now)

	if l.cfg.RPS > 0 && l.cfg.Burst > 0 {
		ok, retryAfter := pl.allowToken(now, l.cfg.RPS, l.cfg.Burst)
		if !ok {
			return Decision{Allowed: false, RetryAfter: retryAfter}
		}
	}

	if l.cfg.MaxConcurrentRequests > 0 {
		select {
		case pl.reqSem <- struct{}{}:
			return Decision{Allowed: true, Permit: &Permit{release: func() { <-pl.reqSem }}}
		default:
			return Decision{Allowed: false, RetryAfter: 1}
		}
	}

	return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
}

// AcquireStream admits one long-lived stream (WebSocket speech) for the
// principal. Streams bypass the token bucket; the semaphore is the bound.
func (l *Limiter) AcquireStream(principal string, now time.Time) Decision {
	pl := l.getOrCreate(principal, now)

	if l.cfg.MaxConcurrentStreams > 0 {
		select {
		case pl.streamSem <- struct{}{}:
			return Decision{Allowed: true, Permit: &Permit{release: func() { <-pl.streamSem }}}
		default:
			return Decision{Allowed: false, RetryAfter: 1}
		}
	}

	return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
}

func (l *Limiter) getOrCreate(principal string, now time.Time) *principalLimiter {
	if principal == "" {
		principal = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) >= l.cfg.MaxEntries {
		for k, v := range l.m {
			if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
				delete(l.m, k)
			}
		}
		// Bounded memory beats perfect fairness: drop one arbitrary entry
		// if the TTL sweep freed nothing.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	if pl, ok := l.m[principal]; ok {
		pl.lastSeen = now
		return pl
	}
	pl := &principalLimiter{
		reqSem:    make(chan struct{}, maxInt(1, l.cfg.MaxConcurrentRequests)),
		streamSem: make(chan struct{}, maxInt(1, l.cfg.MaxConcurrentStreams)),
		lastSeen:  now,
	}
	l.m[principal] = pl
	return pl
}

func (pl *principalLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	capacity := float64(burst)
	if pl.last.IsZero() {
		pl.tokens = capacity
		pl.last = now
	}

	elapsed := now.Sub(pl.last).Seconds()
	if elapsed > 0 {
		pl.tokens = math.Min(capacity, pl.tokens+elapsed*rps)
		pl.last = now
	}

	if pl.tokens >= 1.0 {
		pl.tokens -= 1.0
		return true, 0
	}

	retryAfter := int(math.Ceil((1.0 - pl.tokens) / rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
