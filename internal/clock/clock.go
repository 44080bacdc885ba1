// Package clock implements the audio-master media clock :
// a monotonic, pause-aware clock driven by the audio sink's reported
// playback position, updated via a short-lived mutex around the handful of
// int64 fields (the teacher uses sync/atomic for single hot counters;
// here several related fields must move together, so a mutex guards just
// that update, per "short-lived mutex acquired only around
// the four-byte update" guidance generalized to the small field set).
package clock

import (
	"sync"
	"time"
)

// Clock is an audio-master wall-clock estimator. current_time_us() returns
// base + (now - baseWall) while playing, or base while paused.
type Clock struct {
	mu sync.Mutex

	baseUs int64 // last known audio pts, in microseconds
	baseWall time.Time
	paused bool
	pauseAt time.Time

	nowFunc func() time.Time
}

// New creates a Clock with baseUs=0, unpaused, anchored at the current wall
// time.
func New() *Clock {
	c := &Clock{nowFunc: time.Now}
	c.baseWall = c.nowFunc()
	return c
}

// SetAudioPTS is called by the audio sink as it plays samples; it rebases
// the clock to track the sink's reported position exactly, absorbing any
// scheduling jitter between sink callbacks.
func (c *Clock) SetAudioPTS(us int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseUs = us
	c.baseWall = c.nowFunc()
}

// CurrentTimeUs returns the estimated current playback position in
// microseconds.
func (c *Clock) CurrentTimeUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return c.baseUs
	}
	elapsed := c.nowFunc().Sub(c.baseWall)
	return c.baseUs + elapsed.Microseconds()
}

// TogglePause flips the paused state. Pausing records the wall clock so the
// elapsed-while-paused duration is excluded on resume; resuming rebases
// baseWall to now so no paused-duration leaks into CurrentTimeUs.
func (c *Clock) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		// Resuming: fold in whatever had elapsed before the pause took
		// effect is unnecessary since baseUs/baseWall were frozen at
		// pause time; just rebase the wall anchor to now.
		c.paused = false
		c.baseWall = c.nowFunc()
		return false
	}
	// Pausing: freeze baseUs at the current estimate before flipping.
	elapsed := c.nowFunc().Sub(c.baseWall)
	c.baseUs += elapsed.Microseconds()
	c.paused = true
	c.pauseAt = c.nowFunc()
	return true
}

// IsPaused reports the current paused state.
func (c *Clock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SeekReset snaps the clock to targetUs immediately, resetting the wall
// reference, regardless of paused state.
func (c *Clock) SeekReset(targetUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseUs = targetUs
	c.baseWall = c.nowFunc()
}
