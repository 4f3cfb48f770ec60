package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// PausableClock provides animation time that can be frozen.
// Markers keep their pose while paused and resume where they left off.
type PausableClock struct {
	mu sync.RWMutex

	base TimeProvider

	startReal time.Time
	startAnim time.Time

	isPaused        atomic.Bool
	pauseStartTime  time.Time     // base time when the current pause started
	totalPausedTime time.Duration // cumulative pause duration
}

// NewPausableClock creates a pausable clock over base; nil base uses the monotonic clock
func NewPausableClock(base TimeProvider) *PausableClock {
	if base == nil {
		base = NewMonotonicTimeProvider()
	}
	now := base.Now()
	return &PausableClock{
		base:      base,
		startReal: now,
		startAnim: now,
	}
}

// Now returns current animation time (frozen during pause)
func (pc *PausableClock) Now() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if pc.isPaused.Load() {
		return pc.startAnim.Add(pc.pauseStartTime.Sub(pc.startReal) - pc.totalPausedTime)
	}

	realElapsed := pc.base.Now().Sub(pc.startReal)
	return pc.startAnim.Add(realElapsed - pc.totalPausedTime)
}

// Pause stops animation time advancement
func (pc *PausableClock) Pause() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.isPaused.Load() {
		return
	}
	pc.pauseStartTime = pc.base.Now()
	pc.isPaused.Store(true)
}

// Resume continues animation time advancement
func (pc *PausableClock) Resume() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.isPaused.Load() {
		return
	}
	pc.totalPausedTime += pc.base.Now().Sub(pc.pauseStartTime)
	pc.pauseStartTime = time.Time{}
	pc.isPaused.Store(false)
}

// Toggle flips the pause state and reports whether the clock is now paused
func (pc *PausableClock) Toggle() bool {
	if pc.isPaused.Load() {
		pc.Resume()
		return false
	}
	pc.Pause()
	return true
}

// IsPaused returns current pause state
func (pc *PausableClock) IsPaused() bool {
	return pc.isPaused.Load()
}

// TotalPauseDuration returns cumulative pause time including an ongoing pause
func (pc *PausableClock) TotalPauseDuration() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	total := pc.totalPausedTime
	if pc.isPaused.Load() && !pc.pauseStartTime.IsZero() {
		total += pc.base.Now().Sub(pc.pauseStartTime)
	}
	return total
}
