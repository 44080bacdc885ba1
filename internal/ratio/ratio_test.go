package ratio

import "testing"

func TestEqualIgnoresReduction(t *testing.T) {
	a := New(1, 2)
	b := New(2, 4)
	if !a.Equal(b) {
		t.Fatalf("%v and %v should be equal", a, b)
	}
}

func TestLessCompareAcrossDenominators(t *testing.T) {
	a := New(1, 3)   // 1/3
	b := New(1, 2)   // 1/2
	if !a.Less(b) {
		t.Fatalf("expected %v < %v", a, b)
	}
	if b.Less(a) {
		t.Fatalf("expected %v not < %v", b, a)
	}
}

func TestRescaleConvertsBetweenTimeBases(t *testing.T) {
	tb := New(1, 1000) // milliseconds
	got := tb.Rescale(5_000, Microsecond)
	want := int64(5_000_000)
	if got != want {
		t.Fatalf("Rescale(5000ms -> us) = %d, want %d", got, want)
	}
}

func TestRescaleRoundsToNearestTick(t *testing.T) {
	tb := New(1, 3) // a base that doesn't divide evenly into frames
	got := tb.Rescale(1, New(1, 1))
	want := int64(0) // 1/3 rounds down to 0
	if got != want {
		t.Fatalf("Rescale(1/3 -> whole) = %d, want %d", got, want)
	}

	got = tb.Rescale(2, New(1, 1))
	want = 1 // 2/3 rounds up to 1
	if got != want {
		t.Fatalf("Rescale(2/3 -> whole) = %d, want %d", got, want)
	}
}

func TestTimestampToSeconds(t *testing.T) {
	tb := New(1, 48000)
	got := tb.TimestampToSeconds(48000)
	if got != 1.0 {
		t.Fatalf("TimestampToSeconds(48000 @ 1/48000) = %v, want 1.0", got)
	}
}

func TestNewPanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New(1, 0) to panic")
		}
	}()
	New(1, 0)
}
