// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestProtection(t *testing.T, maxAttempts int, lockout, window time.Duration) (*LoginProtection, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       10,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   lockout,
		AttemptWindow:     window,
		Now:               clock.Now,
	})
	t.Cleanup(lp.Close)
	return lp, clock
}

func TestNewLoginProtectionDefaults(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{})
	defer lp.Close()

	if lp.maxFailedAttempts != 5 {
		t.Errorf("maxFailedAttempts = %d, want 5", lp.maxFailedAttempts)
	}
	if lp.lockoutDuration != 15*time.Minute {
		t.Errorf("lockoutDuration = %v, want 15m", lp.lockoutDuration)
	}
}

func TestAccountLockout(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, time.Hour)
	email := "admin@example.com"

	for i := 1; i <= 2; i++ {
		if locked, _ := lp.RecordFailedAttempt(email); locked {
			t.Fatalf("locked after %d attempts", i)
		}
	}
	if got := lp.RemainingAttempts(email); got != 1 {
		t.Errorf("RemainingAttempts = %d, want 1", got)
	}

	locked, d := lp.RecordFailedAttempt(email)
	if !locked || d != time.Minute {
		t.Fatalf("third failure: locked=%v duration=%v", locked, d)
	}
	if locked, _ := lp.IsAccountLocked(email); !locked {
		t.Error("account should be locked")
	}

	clock.Advance(time.Minute)
	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Error("lock should expire")
	}

	// Second lockout doubles the duration.
	for range 2 {
		lp.RecordFailedAttempt(email)
	}
	if _, d := lp.RecordFailedAttempt(email); d != 2*time.Minute {
		t.Errorf("second lockout = %v, want 2m", d)
	}
}

func TestAttemptWindowResets(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, 10*time.Minute)
	email := "admin@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	clock.Advance(11 * time.Minute)

	if locked, _ := lp.RecordFailedAttempt(email); locked {
		t.Error("window should have reset the count")
	}
	if got := lp.RemainingAttempts(email); got != 2 {
		t.Errorf("RemainingAttempts = %d, want 2", got)
	}
}

func TestSuccessfulLoginClears(t *testing.T) {
	lp, _ := newTestProtection(t, 3, time.Minute, time.Hour)
	email := "admin@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordSuccessfulLogin(email)
	if got := lp.RemainingAttempts(email); got != 3 {
		t.Errorf("RemainingAttempts = %d, want 3", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	lp, clock := newTestProtection(t, 3, time.Minute, time.Minute)
	lp.RecordFailedAttempt("a@example.com")
	clock.Advance(2 * time.Minute)
	lp.cleanupStaleEntries()

	lp.attemptsMu.RLock()
	defer lp.attemptsMu.RUnlock()
	if len(lp.failedAttempts) != 0 {
		t.Errorf("stale entries left: %d", len(lp.failedAttempts))
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 2})
	defer lp.Close()
	h := lp.Middleware()(okHandler())

	do := func(method, ip string) int {
		req := httptest.NewRequest(method, "/api/auth/sign-in", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := range 2 {
		if code := do(http.MethodPost, "203.0.113.5"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := do(http.MethodPost, "203.0.113.5"); code != http.StatusTooManyRequests {
		t.Errorf("burst exceeded: status %d, want 429", code)
	}
	if code := do(http.MethodGet, "203.0.113.5"); code != http.StatusOK {
		t.Errorf("GET should not be limited, got %d", code)
	}
	if code := do(http.MethodPost, "198.51.100.7"); code != http.StatusOK {
		t.Errorf("other IP should not be limited, got %d", code)
	}
}
