package clock

import (
	"testing"
	"time"
)

func TestCurrentTimeAdvancesWithWallClock(t *testing.T) {
	c := New()
	now := time.Unix(1000, 0)
	c.nowFunc = func() time.Time { return now }
	c.SetAudioPTS(5_000_000)

	now = now.Add(250 * time.Millisecond)
	got := c.CurrentTimeUs()
	want := int64(5_250_000)
	if got != want {
		t.Fatalf("CurrentTimeUs() = %d, want %d", got, want)
	}
}

func TestPauseFreezesTime(t *testing.T) {
	c := New()
	now := time.Unix(2000, 0)
	c.nowFunc = func() time.Time { return now }
	c.SetAudioPTS(1_000_000)

	now = now.Add(500 * time.Millisecond)
	c.TogglePause()
	if !c.IsPaused() {
		t.Fatal("expected paused")
	}

	frozen := c.CurrentTimeUs()
	now = now.Add(2 * time.Second) // wall time passes while paused
	if got := c.CurrentTimeUs(); got != frozen {
		t.Fatalf("time advanced while paused: %d != %d", got, frozen)
	}

	c.TogglePause()
	if c.IsPaused() {
		t.Fatal("expected unpaused")
	}
	if got := c.CurrentTimeUs(); got != frozen {
		t.Fatalf("resume should not jump ahead: got %d, want %d", got, frozen)
	}

	now = now.Add(100 * time.Millisecond)
	if got := c.CurrentTimeUs(); got != frozen+100_000 {
		t.Fatalf("post-resume advance wrong: got %d, want %d", got, frozen+100_000)
	}
}

func TestSeekReset(t *testing.T) {
	c := New()
	now := time.Unix(3000, 0)
	c.nowFunc = func() time.Time { return now }
	c.SetAudioPTS(9_000_000)

	c.SeekReset(42_000_000)
	if got := c.CurrentTimeUs(); got != 42_000_000 {
		t.Fatalf("CurrentTimeUs() after seek = %d, want 42000000", got)
	}
}
