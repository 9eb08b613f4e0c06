package chart

import (
	"math"
	"sort"
)

// Default smoothing parameters for the trend line.
const (
	DefaultFrac       = 2.0 / 3.0
	DefaultIterations = 3
)

// Lowess fits a locally weighted linear regression of y on x and returns
// the fitted value at every x. Each local fit uses the ceil(frac*n) nearest
// points with tricube weights; iterations extra passes reweight points by
// the bisquare of their residuals so isolated spikes pull the curve less.
// Inputs of different lengths return nil.
func Lowess(x, y []float64, frac float64, iterations int) []float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return nil
	}
	fitted := make([]float64, n)
	if n == 1 {
		fitted[0] = y[0]
		return fitted
	}

	span := int(math.Ceil(frac * float64(n)))
	span = max(2, min(span, n))

	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}
	dist := make([]float64, n)
	sorted := make([]float64, n)
	weights := make([]float64, n)
	residuals := make([]float64, n)

	for pass := 0; pass <= iterations; pass++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				dist[j] = math.Abs(x[j] - x[i])
			}
			copy(sorted, dist)
			sort.Float64s(sorted)
			h := sorted[span-1]

			for j := 0; j < n; j++ {
				weights[j] = robust[j] * tricube(dist[j], h)
			}
			fitted[i] = weightedLinear(x, y, weights, x[i], y[i])
		}

		if pass == iterations {
			break
		}
		for j := 0; j < n; j++ {
			residuals[j] = math.Abs(y[j] - fitted[j])
		}
		scale := 6 * median(residuals)
		if scale == 0 {
			break
		}
		for j := 0; j < n; j++ {
			robust[j] = bisquare(residuals[j] / scale)
		}
	}
	return fitted
}

func tricube(d, h float64) float64 {
	if h <= 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	u := d / h
	if u >= 1 {
		return 0
	}
	t := 1 - u*u*u
	return t * t * t
}

func bisquare(u float64) float64 {
	if u >= 1 {
		return 0
	}
	t := 1 - u*u
	return t * t
}

// weightedLinear evaluates the weighted least squares line at x0. With no
// usable weight it returns fallback; with no spread in x it returns the
// weighted mean.
func weightedLinear(x, y, w []float64, x0, fallback float64) float64 {
	var sw, swx, swy float64
	for j := range x {
		sw += w[j]
		swx += w[j] * x[j]
		swy += w[j] * y[j]
	}
	if sw <= 0 {
		return fallback
	}
	xm, ym := swx/sw, swy/sw

	var sxx, sxy float64
	for j := range x {
		dx := x[j] - xm
		sxx += w[j] * dx * dx
		sxy += w[j] * dx * (y[j] - ym)
	}
	if sxx < 1e-12 {
		return ym
	}
	return ym + sxy/sxx*(x0-xm)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
