// Package ratelimit implements the token-bucket download limiter the
// request driver applies to response-body reads: every 250ms, once the
// quota on hand is exhausted, it is assigned rate/4 bytes (never added
// to, so quota can never accumulate across idle ticks), and reads are
// capped to the quota on hand.
//
// rate-limit(0) does not disarm an already-armed refill timer — it only
// stops the quota from constraining reads, matching the original
// http_connection::rate_limit, which never cancels m_limiter_timer except
// on close(). This is documented in DESIGN.md as a decided Open Question,
// reproduced rather than "fixed".
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const refillInterval = 250 * time.Millisecond

// Limiter is a byte-rate limiter for a single connection's body reads.
type Limiter struct {
	clock clock.Clock

	mu    sync.Mutex
	rate  uint64 // bytes/sec; 0 means unlimited
	quota uint64

	armed  bool
	stopCh chan struct{}
}

func New(c clock.Clock) *Limiter {
	if c == nil {
		c = clock.New()
	}
	return &Limiter{clock: c}
}

// SetRate sets the byte-per-second rate. A rate of 0 disables limiting for
// subsequent Allowance calls, but does not stop an already-running refill
// timer (see package doc).
func (l *Limiter) SetRate(bytesPerSec uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rate = bytesPerSec
	if bytesPerSec > 0 && !l.armed {
		l.armed = true
		l.stopCh = make(chan struct{})
		// Create the ticker here rather than on the goroutine, so the first
		// tick is due one refillInterval after this call.
		go l.refillLoop(l.clock.Ticker(refillInterval), l.stopCh)
	}
}

// Allowance returns how many of the requested bytes may be read right now,
// consuming that many from the quota. When unlimited it always returns
// requested unchanged.
func (l *Limiter) Allowance(requested uint) uint {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate == 0 {
		return requested
	}

	allowed := uint64(requested)
	if l.quota < allowed {
		allowed = l.quota
	}
	l.quota -= allowed
	return uint(allowed)
}

// Close stops the refill timer for good.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.armed {
		close(l.stopCh)
		l.armed = false
	}
}

func (l *Limiter) refillLoop(ticker *clock.Ticker, stop chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.quota == 0 {
				l.quota = l.rate / 4
			}
			l.mu.Unlock()
		}
	}
}
