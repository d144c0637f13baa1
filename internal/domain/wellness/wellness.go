// Package wellness scores daily self-reported wellness check-ins.
package wellness

import (
	"fmt"
	"math"
)

const (
	MinMetric = 0
	MaxMetric = 10
)

const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// trendBand is how far the recent mean must move before it counts as a trend.
const trendBand = 0.5

type Metrics struct {
	Mood     int `json:"mood"`
	Energy   int `json:"energy"`
	Sleep    int `json:"sleep"`
	Activity int `json:"activity"`
}

// Score is the mean of the four metrics rounded half away from zero.
// A check-in without metrics scores zero.
func Score(m *Metrics) int {
	if m == nil {
		return 0
	}
	sum := m.Mood + m.Energy + m.Sleep + m.Activity
	return int(math.Round(float64(sum) / 4))
}

func Validate(m Metrics) error {
	fields := []struct {
		name  string
		value int
	}{
		{"mood", m.Mood},
		{"energy", m.Energy},
		{"sleep", m.Sleep},
		{"activity", m.Activity},
	}
	for _, f := range fields {
		if f.value < MinMetric || f.value > MaxMetric {
			return fmt.Errorf("%s must be between %d and %d, got %d", f.name, MinMetric, MaxMetric, f.value)
		}
	}
	return nil
}

// Trend compares the newer half of scores with the older half. scores are
// ordered oldest first; with an odd count the middle score is ignored.
func Trend(scores []int) string {
	if len(scores) < 2 {
		return TrendInsufficientData
	}
	half := len(scores) / 2
	older := mean(scores[:half])
	newer := mean(scores[len(scores)-half:])

	switch diff := newer - older; {
	case diff > trendBand:
		return TrendImproving
	case diff < -trendBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
