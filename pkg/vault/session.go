package vault

import (
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// cooldown backoff after consecutive failed unlocks (spec.md §4.5:
// "after N (default 5) consecutive failures the Session Manager inserts a
// backoff delay before responding"). Advisory only — PBKDF2 itself is
// already the expensive step.
const (
	cooldownThreshold = 5
	cooldownStep      = 2 * time.Second
	cooldownMax       = 30 * time.Second
)

// session holds the Locked/Unlocked state machine (spec.md §4.5). The
// derived entry-encryption key is the only sensitive in-memory state; it
// lives inside a memguard.Enclave so the runtime never leaves a plaintext
// copy lying around after Lock — the same enclave/LockedBuffer discipline
// the southwinds-io-volta crypto package applies to its own session keys.
type session struct {
	mu sync.Mutex

	locked bool
	key    *memguard.Enclave

	lastActivityMillis int64
	consecutiveFails    int

	clock func() time.Time

	stopTicker chan struct{}
}

func newSession(clock func() time.Time) *session {
	if clock == nil {
		clock = time.Now
	}
	return &session{locked: true, clock: clock}
}

func (s *session) nowMillis() int64 {
	return s.clock().UnixMilli()
}

// open transitions to Unlocked, caching key and resetting activity.
func (s *session) open(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.key = memguard.NewEnclave(key)
	s.locked = false
	s.lastActivityMillis = s.nowMillis()
	s.consecutiveFails = 0
}

// close transitions to Locked, destroying any cached key material.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *session) closeLocked() {
	s.locked = true
	s.key = nil
}

// withKey runs fn with the decrypted session key, wiping the decrypted
// buffer when fn returns.
func (s *session) withKey(fn func(key []byte) error) error {
	s.mu.Lock()
	if s.locked || s.key == nil {
		s.mu.Unlock()
		return ErrVaultLocked
	}
	enclave := s.key
	s.mu.Unlock()

	buf, err := enclave.Open()
	if err != nil {
		return ErrVaultLocked
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

func (s *session) touchActivity() {
	s.mu.Lock()
	s.lastActivityMillis = s.nowMillis()
	s.mu.Unlock()
}

// checkAutoLock locks the session if it has been idle past
// autoLockMinutes, returning true if a transition happened. Called both
// from authenticated-operation entry points and from the background
// ticker, so idle enforcement is immediate for callers and eventual for
// hosts that never call anything while idle.
func (s *session) checkAutoLock(autoLockMinutes int) bool {
	if autoLockMinutes <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return false
	}
	idleMillis := s.nowMillis() - s.lastActivityMillis
	if idleMillis < int64(autoLockMinutes)*60_000 {
		return false
	}

	s.closeLocked()
	return true
}

func (s *session) isLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// recordFailedUnlock increments the consecutive-failure counter and
// returns the backoff delay the caller should sleep before responding.
func (s *session) recordFailedUnlock() time.Duration {
	s.mu.Lock()
	s.consecutiveFails++
	fails := s.consecutiveFails
	s.mu.Unlock()

	if fails < cooldownThreshold {
		return 0
	}
	d := cooldownStep * time.Duration(fails-cooldownThreshold+1)
	if d > cooldownMax {
		d = cooldownMax
	}
	return d
}

func (s *session) resetFailures() {
	s.mu.Lock()
	s.consecutiveFails = 0
	s.mu.Unlock()
}

// startAutoLockTicker launches a background goroutine that fires
// checkAutoLock every interval (<= 60s per spec.md §4.5) until stopped.
// This covers hosts (e.g. an idle MCP server) that never themselves make a
// call while the session sits idle.
func (s *session) startAutoLockTicker(interval time.Duration, autoLockMinutes func() int) {
	s.stopTicker = make(chan struct{})
	ticker := time.NewTicker(interval)
	stop := s.stopTicker

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.checkAutoLock(autoLockMinutes())
			case <-stop:
				return
			}
		}
	}()
}

func (s *session) stopAutoLockTicker() {
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}
