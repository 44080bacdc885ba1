// Package ratio implements the small rational-arithmetic type used for time
// bases and frame rates throughout the pipeline.
package ratio

import "fmt"

// Rational is a (Num, Den) pair with Den != 0. It is not reduced on
// construction; comparisons are defined by cross-multiplication so that
// unreduced values still compare correctly.
type Rational struct {
	Num int64
	Den int64
}

// New returns a Rational, panicking if den is zero — constructing an
// invalid time base is a programmer error, not a runtime condition callers
// recover from.
func New(num, den int64) Rational {
	if den == 0 {
		panic("ratio: zero denominator")
	}
	return Rational{Num: num, Den: den}
}

// Zero is the identity timestamp placeholder (0 over any positive den is
// exact zero seconds).
var Zero = Rational{Num: 0, Den: 1}

// String renders as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Float64 returns Num/Den as a float64.
func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Equal reports whether r and o represent the same ratio via
// cross-multiplication, independent of reduction.
func (r Rational) Equal(o Rational) bool {
	return r.Num*o.Den == o.Num*r.Den
}

// Less reports r < o via cross-multiplication, assuming both denominators
// are positive (true for every time base this decoder constructs).
func (r Rational) Less(o Rational) bool {
	return r.Num*o.Den < o.Num*r.Den
}

// TimestampToSeconds converts an integer timestamp expressed in time base r
// to floating-point seconds: t * r.Num / r.Den.
func (r Rational) TimestampToSeconds(t int64) float64 {
	return float64(t) * r.Float64()
}

// Rescale converts a timestamp from time base r to time base to, rounding
// to the nearest integer tick.
func (r Rational) Rescale(t int64, to Rational) int64 {
	// t * r.Num * to.Den / (r.Den * to.Num), done in floating point to avoid
	// overflow on the large numerators long files produce; decoders only
	// use this for reporting, never for bit-exact decode decisions.
	num := float64(t) * float64(r.Num) * float64(to.Den)
	den := float64(r.Den) * float64(to.Num)
	if den == 0 {
		return 0
	}
	v := num / den
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}

// Microsecond is the time base used by the media clock (§4.11): 1/1_000_000.
var Microsecond = Rational{Num: 1, Den: 1_000_000}
