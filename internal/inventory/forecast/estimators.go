// Package forecast predicts short-horizon daily demand from consumption history.
package forecast

import "math"

const (
	seasonWindow  = 7
	minTrendDays  = 7
	minSeasonDays = 2 * seasonWindow
)

// MovingAverage is the mean of the last window values, or of all values
// when fewer exist. It returns NaN for an empty series.
func MovingAverage(values []float64, window int) float64 {
	if len(values) < window {
		return mean(values)
	}
	return mean(values[len(values)-window:])
}

// SeasonalityFactor compares the last seven days to the seven before them.
// It is 1 with fewer than 14 values or a zero previous week.
func SeasonalityFactor(values []float64) float64 {
	if len(values) < minSeasonDays {
		return 1
	}

	n := len(values)
	lastWeek := mean(values[n-seasonWindow:])
	previousWeek := mean(values[n-2*seasonWindow : n-seasonWindow])
	if previousWeek == 0 {
		return 1
	}
	return lastWeek / previousWeek
}

// TrendFactor is mean(second half) / mean(first half), split at floor(n/2).
// It is 1 with fewer than 7 values or a zero first half.
func TrendFactor(values []float64) float64 {
	if len(values) < minTrendDays {
		return 1
	}

	mid := len(values) / 2
	firstHalf := mean(values[:mid])
	if firstHalf == 0 {
		return 1
	}
	return mean(values[mid:]) / firstHalf
}

// StdDev is the population standard deviation of values around center.
func StdDev(values []float64, center float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	var sum float64
	for _, v := range values {
		d := v - center
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
