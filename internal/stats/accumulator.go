// Package stats provides the running score summaries and the sequential
// two-sample test used to prune lineups.
package stats

import "math"

// Accumulator is a running count, mean and variance (Welford). The zero value
// is empty and ready to use. It is not safe for concurrent writes.
type Accumulator struct {
	n    int64
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Add folds one observation into the summary.
func (a *Accumulator) Add(x float64) {
	a.n++
	if a.n == 1 {
		a.min, a.max = x, x
	} else {
		a.min = math.Min(a.min, x)
		a.max = math.Max(a.max, x)
	}
	delta := x - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (x - a.mean)
}

// Merge folds another summary into a (Chan et al. parallel update).
func (a *Accumulator) Merge(b Accumulator) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	n := a.n + b.n
	delta := b.mean - a.mean
	a.m2 += b.m2 + delta*delta*float64(a.n)*float64(b.n)/float64(n)
	a.mean += delta * float64(b.n) / float64(n)
	a.n = n
	a.min = math.Min(a.min, b.min)
	a.max = math.Max(a.max, b.max)
}

// Restore rebuilds an accumulator from values previously read from one.
func Restore(n int64, mean, m2, lo, hi float64) Accumulator {
	if n <= 0 {
		return Accumulator{}
	}
	return Accumulator{n: n, mean: mean, m2: m2, min: lo, max: hi}
}

// N is the number of observations.
func (a Accumulator) N() int64 { return a.n }

// Mean is the running mean, 0 when empty.
func (a Accumulator) Mean() float64 { return a.mean }

// M2 is the sum of squared deviations from the mean.
func (a Accumulator) M2() float64 { return a.m2 }

// Min is the smallest observation, 0 when empty.
func (a Accumulator) Min() float64 { return a.min }

// Max is the largest observation, 0 when empty.
func (a Accumulator) Max() float64 { return a.max }

// Variance is the unbiased sample variance, or 0 with fewer than two samples.
func (a Accumulator) Variance() float64 {
	if a.n < 2 {
		return 0
	}
	return a.m2 / float64(a.n-1)
}

// StdDev is the square root of Variance.
func (a Accumulator) StdDev() float64 {
	return math.Sqrt(a.Variance())
}

// StdErr is the standard error of the mean.
func (a Accumulator) StdErr() float64 {
	if a.n == 0 {
		return 0
	}
	return math.Sqrt(a.Variance() / float64(a.n))
}
