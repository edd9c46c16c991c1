package ratelimit

import (
	"sync"
	"time"
)

type AttemptRecord struct {
	Count        int
	WindowStart  time.Time
	LastAttempt  time.Time
	BlockedUntil time.Time
}

// Limiter allows maxAttempts per client within a window. A client going over
// is blocked for blockDuration.
type Limiter struct {
	mu             sync.Mutex
	attempts       map[string]*AttemptRecord
	maxAttempts    int
	windowDuration time.Duration
	blockDuration  time.Duration
	now            func() time.Time
	stop           chan struct{}
	stopOnce       sync.Once
}

func NewLimiter(maxAttempts int, windowDuration, blockDuration time.Duration) *Limiter {
	limiter := &Limiter{
		attempts:       make(map[string]*AttemptRecord),
		maxAttempts:    maxAttempts,
		windowDuration: windowDuration,
		blockDuration:  blockDuration,
		now:            time.Now,
		stop:           make(chan struct{}),
	}

	go limiter.cleanup(time.Minute)

	return limiter
}

// Check counts an attempt and reports whether it is allowed. When it is not,
// the remaining block time is returned. A non-positive maxAttempts disables
// limiting.
func (l *Limiter) Check(clientID string) (bool, time.Duration) {
	if l.maxAttempts <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, exists := l.attempts[clientID]
	if !exists {
		record = &AttemptRecord{WindowStart: now}
		l.attempts[clientID] = record
	}

	if now.Before(record.BlockedUntil) {
		return false, record.BlockedUntil.Sub(now)
	}

	if now.Sub(record.WindowStart) > l.windowDuration {
		record.Count = 0
		record.WindowStart = now
	}

	record.Count++
	record.LastAttempt = now

	if record.Count > l.maxAttempts {
		record.BlockedUntil = now.Add(l.blockDuration)
		return false, l.blockDuration
	}

	return true, 0
}

func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, clientID)
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Stop ends the background cleanup.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *Limiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for clientID, record := range l.attempts {
		if now.Sub(record.LastAttempt) > l.windowDuration*2 && now.After(record.BlockedUntil) {
			delete(l.attempts, clientID)
		}
	}
}
