package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ResetCodeLength      = 6
	MaxResetCodeAttempts = 5
	resetRateLimitWindow = time.Minute
)

// GenerateResetCode generates a random numeric password-reset code.
func GenerateResetCode() (string, error) {
	bytes := make([]byte, ResetCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 0; i < ResetCodeLength; i++ {
		fmt.Fprintf(&b, "%d", bytes[i]%10)
	}
	return b.String(), nil
}

// HashResetCode returns the hex SHA-256 of code. Only the hash is stored.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// ResetCodeMatches compares code against a stored hash in constant time.
func ResetCodeMatches(code, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashResetCode(code)), []byte(hash)) == 1
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RateLimiter allows at most limit events per key within a sliding minute.
// Idle keys are swept from Allow at most once per window.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	requests  map[string][]time.Time
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter creates a limiter allowing limit events per minute per key.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records an event for key and returns an error if the key is over its limit.
func (l *RateLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= resetRateLimitWindow {
		l.sweep(now)
	}
	valid := pruneBefore(l.requests[key], now.Add(-resetRateLimitWindow))

	if len(valid) >= l.limit {
		wait := valid[0].Add(resetRateLimitWindow).Sub(now)
		l.requests[key] = valid
		return fmt.Errorf("rate limit exceeded: maximum %d requests per minute, retry in %v", l.limit, wait.Round(time.Second))
	}

	l.requests[key] = append(valid, now)
	return nil
}

// Cleanup drops keys with no events inside the window.
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.now())
}

func (l *RateLimiter) sweep(now time.Time) {
	l.lastSweep = now
	cutoff := now.Add(-resetRateLimitWindow)
	for key, requests := range l.requests {
		valid := pruneBefore(requests, cutoff)
		if len(valid) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = valid
		}
	}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	valid := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
