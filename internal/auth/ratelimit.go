package auth

import (
	"strings"
	"sync"
	"time"
)

// LoginKey identifies the account a local-credential attempt targets, from
// one client. Staff, teachers and students live in separate tables, so the
// same username under two roles is two accounts.
type LoginKey struct {
	IP                string
	EstablishmentCode string
	Role              string
	Username          string
}

// NewLoginKey normalizes the submitted fields so case and padding variants
// share one counter.
func NewLoginKey(ip string, creds Credentials) LoginKey {
	return LoginKey{
		IP:                ip,
		EstablishmentCode: strings.ToUpper(strings.TrimSpace(creds.EstablishmentCode)),
		Role:              strings.TrimSpace(creds.Role),
		Username:          strings.ToLower(strings.TrimSpace(creds.Username)),
	}
}

// RateLimiter locks out an account after repeated failed local-credential
// logins. Admin codes and provider logins are not limited.
type RateLimiter struct {
	mu              sync.Mutex
	failures        map[LoginKey]*failureWindow
	maxAttempts     int
	window          time.Duration
	lockout         time.Duration
	cleanupInterval time.Duration
	stop            chan struct{}
	now             func() time.Time
}

// failureWindow counts failures since start. lockedUntil is zero until the
// limit is reached.
type failureWindow struct {
	count       int
	start       time.Time
	lockedUntil time.Time
}

func (w *failureWindow) locked(now time.Time) bool {
	return !w.lockedUntil.IsZero() && now.Before(w.lockedUntil)
}

func (w *failureWindow) expired(now time.Time, window time.Duration) bool {
	return now.Sub(w.start) > window
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // Failures before lockout (default: 5)
	WindowDuration  time.Duration // Counting window (default: 15m)
	LockoutDuration time.Duration // Lockout after MaxAttempts (default: 30m)
	CleanupInterval time.Duration // Sweep interval for stale entries (default: 5m)
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiter starts a limiter; zero fields take the defaults. Call Stop
// to end the background sweep.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	rl := &RateLimiter{
		failures:        make(map[LoginKey]*failureWindow),
		maxAttempts:     cfg.MaxAttempts,
		window:          cfg.WindowDuration,
		lockout:         cfg.LockoutDuration,
		cleanupInterval: cfg.CleanupInterval,
		stop:            make(chan struct{}),
		now:             time.Now,
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// Allow reports whether an attempt for key may proceed, and otherwise how
// long the caller should wait.
func (rl *RateLimiter) Allow(key LoginKey) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[key]
	switch {
	case !ok:
		return true, 0
	case w.locked(now):
		return false, w.lockedUntil.Sub(now)
	case w.expired(now, rl.window), w.count < rl.maxAttempts:
		return true, 0
	}
	return false, rl.lockout
}

// RecordFailure counts a failed attempt and reports whether it locked the account.
func (rl *RateLimiter) RecordFailure(key LoginKey) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[key]
	if !ok || w.expired(now, rl.window) {
		w = &failureWindow{start: now}
		rl.failures[key] = w
	}

	w.count++
	if w.count >= rl.maxAttempts {
		w.lockedUntil = now.Add(rl.lockout)
		return true, rl.lockout
	}
	return false, 0
}

// RecordSuccess forgets earlier failures for key.
func (rl *RateLimiter) RecordSuccess(key LoginKey) {
	rl.mu.Lock()
	delete(rl.failures, key)
	rl.mu.Unlock()
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops entries whose window and lockout are both over.
func (rl *RateLimiter) sweep() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.failures {
		if w.expired(now, rl.window+rl.lockout) && !w.locked(now) {
			delete(rl.failures, key)
		}
	}
}
