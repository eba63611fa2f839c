// Package stats provides the reductions used for reporting and expectation
// formation. They are written as plain loops so that the floating-point
// evaluation order is fixed and runs are reproducible bit-for-bit.
package stats

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Number is any integer or floating-point type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Sum adds the values in order.
func Sum[T Number](xs []T) float64 {
	total := 0.0
	for _, x := range xs {
		total += float64(x)
	}
	return total
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean[T Number](xs []T) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return Sum(xs) / float64(len(xs))
}

// Variance returns the population variance (divisor n).
func Variance[T Number](xs []T) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := Mean(xs)
	acc := 0.0
	for _, x := range xs {
		d := float64(x) - m
		acc += d * d
	}
	return acc / float64(len(xs))
}

// Std returns the population standard deviation.
func Std[T Number](xs []T) float64 {
	return math.Sqrt(Variance(xs))
}

// Skew returns the biased sample skewness m3 / m2^1.5.
func Skew[T Number](xs []T) float64 {
	m2, m3, _ := centralMoments(xs)
	if m2 == 0 {
		return math.NaN()
	}
	return m3 / math.Pow(m2, 1.5)
}

// Kurtosis returns the biased excess kurtosis m4 / m2^2 - 3.
func Kurtosis[T Number](xs []T) float64 {
	m2, _, m4 := centralMoments(xs)
	if m2 == 0 {
		return math.NaN()
	}
	return m4/(m2*m2) - 3
}

func centralMoments[T Number](xs []T) (m2, m3, m4 float64) {
	if len(xs) == 0 {
		return 0, 0, 0
	}
	m := Mean(xs)
	for _, x := range xs {
		d := float64(x) - m
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(xs))
	return m2 / n, m3 / n, m4 / n
}

// ArgMax returns the index and value of the first maximum. Index is -1 for
// an empty slice.
func ArgMax[T Number](xs []T) (int, T) {
	var best T
	idx := -1
	for i, x := range xs {
		if idx < 0 || x > best {
			best, idx = x, i
		}
	}
	return idx, best
}

// ArgMin returns the index and value of the first minimum.
func ArgMin[T Number](xs []T) (int, T) {
	var best T
	idx := -1
	for i, x := range xs {
		if idx < 0 || x < best {
			best, idx = x, i
		}
	}
	return idx, best
}

// DurbinWatson returns sum((e_t - e_{t-1})^2) / sum(e_t^2). Values near 2
// indicate no first-order autocorrelation.
func DurbinWatson(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	num, den := 0.0, xs[0]*xs[0]
	for i := 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		num += d * d
		den += xs[i] * xs[i]
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// LognormalToNormal converts the mean and standard deviation of a lognormal
// variable into the mu and sigma of its underlying normal distribution.
func LognormalToNormal(mean, std float64) (mu, sigma float64) {
	mu = math.Log(mean * mean / math.Sqrt(mean*mean+std*std))
	sigma = math.Sqrt(math.Log(1 + std*std/(mean*mean)))
	return mu, sigma
}
