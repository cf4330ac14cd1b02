package strategy

import "math"

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// meanStd returns the mean and the sample (n-1) standard deviation.
func meanStd(values []float64) (float64, float64) {
	m := mean(values)
	if len(values) < 2 {
		return m, 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return m, math.Sqrt(ss / float64(len(values)-1))
}

// trailing returns the window ending at index i inclusive.
func trailing(values []float64, i, window int) []float64 {
	return values[i-window+1 : i+1]
}
