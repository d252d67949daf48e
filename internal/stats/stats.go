// Package stats computes time-of-day analytics over daily records. Every
// function here is pure: the same records always produce the same output.
package stats

import (
	"math"
	"sort"

	"github.com/sadopc/habitlab/internal/store"
)

// LowSampleThreshold is the count below which a bucket is flagged as
// untrustworthy. Flagged buckets are still computed.
const LowSampleThreshold = 3

type Metric string

const (
	Concentration  Metric = "concentration"
	Accomplishment Metric = "accomplishment"
	Fatigue        Metric = "fatigue"
)

// Metrics lists the subjective metrics in display order.
var Metrics = []Metric{Concentration, Accomplishment, Fatigue}

func (m Metric) Label() string {
	switch m {
	case Concentration:
		return "Concentration"
	case Accomplishment:
		return "Accomplishment"
	case Fatigue:
		return "Fatigue"
	}
	return string(m)
}

// Value returns the metric's value on e. The second result is false when the
// metric is not recorded.
func (m Metric) Value(e *store.Execution) (int, bool) {
	if e == nil {
		return 0, false
	}
	var v int
	switch m {
	case Concentration:
		v = e.Concentration
	case Accomplishment:
		v = e.Accomplishment
	case Fatigue:
		v = e.Fatigue
	}
	return v, v != 0
}

// BucketStats aggregates one metric over the records started in a bucket.
// Nil pointers mean there was no data, which is distinct from zero.
type BucketStats struct {
	Bucket           store.TimeOfDay
	Count            int
	InterruptedCount int
	Values           []int // in record order
	Mean             *float64
	Median           *float64
	SD               *float64 // population standard deviation
	LowSample        bool
	InterruptionRate *float64 // percent
}

type TimeOfDayStats struct {
	Metric  Metric
	Buckets []BucketStats // one per store.TimesOfDay, same order
	Trend   []*float64    // fitted median at each bucket index
}

// ComputeTimeOfDay buckets the carried-out records by started time and
// summarizes metric in each bucket.
func ComputeTimeOfDay(records []store.DailyRecord, metric Metric) TimeOfDayStats {
	buckets := make([]BucketStats, len(store.TimesOfDay))
	for i, b := range store.TimesOfDay {
		buckets[i].Bucket = b
	}

	for _, r := range records {
		e := r.Execution
		if e == nil {
			continue
		}
		idx := e.StartedTime.Index()
		if idx < 0 {
			continue
		}
		v, ok := metric.Value(e)
		if !ok {
			continue
		}
		b := &buckets[idx]
		b.Count++
		if e.Interrupted() {
			b.InterruptedCount++
		}
		b.Values = append(b.Values, v)
	}

	var xs, ys []float64
	for i := range buckets {
		b := &buckets[i]
		if b.Count == 0 {
			continue
		}
		b.Mean = ptr(mean(b.Values))
		b.Median = ptr(median(b.Values))
		b.SD = ptr(populationSD(b.Values))
		b.LowSample = b.Count < LowSampleThreshold
		b.InterruptionRate = ptr(float64(b.InterruptedCount) / float64(b.Count) * 100)

		xs = append(xs, float64(i))
		ys = append(ys, *b.Median)
	}

	trend := make([]*float64, len(buckets))
	if slope, intercept, ok := LinearFit(xs, ys); ok {
		for i := range trend {
			trend[i] = ptr(intercept + slope*float64(i))
		}
	}

	return TimeOfDayStats{Metric: metric, Buckets: buckets, Trend: trend}
}

// LinearFit returns the ordinary least-squares line through the points.
// ok is false with fewer than two points or when all x are equal.
func LinearFit(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, 0, false
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

func mean(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

func populationSD(values []int) float64 {
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := float64(v) - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func ptr(v float64) *float64 { return &v }
