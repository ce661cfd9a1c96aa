package irrigation

import (
	"math"
	"sort"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// percentile uses linear interpolation between closest ranks, p in [0, 100].
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func median(values []float64) float64 {
	return percentile(values, 50)
}

// rollingMedian replaces every value by the median of itself and up to w-1
// preceding values.
func rollingMedian(values []float64, w int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		from := i - w + 1
		if from < 0 {
			from = 0
		}
		out[i] = median(values[from : i+1])
	}
	return out
}

// slopePerHour is the least-squares slope of moisture against elapsed hours.
// Fewer than two samples, or samples sharing one timestamp, give 0.
func slopePerHour(samples []types.SoilSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	t0 := samples[0].Timestamp
	n := float64(len(samples))
	var sx, sy float64
	for _, s := range samples {
		sx += s.Timestamp.Sub(t0).Hours()
		sy += s.Moisture
	}
	mx, my := sx/n, sy/n
	var sxx, sxy float64
	for _, s := range samples {
		dx := s.Timestamp.Sub(t0).Hours() - mx
		sxx += dx * dx
		sxy += dx * (s.Moisture - my)
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

// trailing returns the samples within span of the last one.
func trailing(samples []types.SoilSample, span time.Duration) []types.SoilSample {
	if len(samples) == 0 {
		return nil
	}
	since := samples[len(samples)-1].Timestamp.Add(-span)
	i := sort.Search(len(samples), func(i int) bool { return !samples[i].Timestamp.Before(since) })
	return samples[i:]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func moistures(samples []types.SoilSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Moisture
	}
	return out
}
