package stats

import "math"

var durationScores = map[int]int{5: 1, 15: 2, 30: 3, 60: 4, 180: 5}

// DurationScore maps session minutes to a 1-5 ordinal. Unrecognized
// durations have no score.
func DurationScore(minutes int) (int, bool) {
	s, ok := durationScores[minutes]
	return s, ok
}

// AverageScore averages the recognized scores of minutes. ok is false when
// none are recognized.
func AverageScore(minutes []int) (avg float64, ok bool) {
	sum, n := 0, 0
	for _, m := range minutes {
		if s, ok := DurationScore(m); ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// CompletionRate is recordCount/durationDays as a rounded percentage.
func CompletionRate(recordCount, durationDays int) int {
	if durationDays <= 0 || recordCount <= 0 {
		return 0
	}
	return int(math.Round(float64(recordCount) / float64(durationDays) * 100))
}

// Percent returns part/total*100 rounded, or 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
