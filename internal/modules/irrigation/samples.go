package irrigation

import (
	"math"
	"sort"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// IsFault reports whether a moisture value is outside (0, 100]. Faults are
// stored but never enter the statistics.
func IsFault(moisture float64) bool {
	return math.IsNaN(moisture) || moisture <= 0 || moisture > 100
}

// Usable reports whether a sample can be stored at all.
func Usable(s types.SoilSample) bool {
	return !s.Timestamp.IsZero() && s.Zone != "" && !math.IsNaN(s.Moisture) && !math.IsInf(s.Moisture, 0)
}

// Representative reduces the probes of one zone to a single reading: the
// median of the probes that report a value in (0, 100].
func Representative(probes []*float64) (float64, bool) {
	var active []float64
	for _, p := range probes {
		if p == nil || IsFault(*p) {
			continue
		}
		active = append(active, *p)
	}
	if len(active) == 0 {
		return 0, false
	}
	return median(active), true
}

// Append adds s to the log and returns the deduplicated log. ok is false when
// s is unusable, in which case the log is returned unchanged.
func Append(log []types.SoilSample, s types.SoilSample) ([]types.SoilSample, bool) {
	if !Usable(s) {
		return log, false
	}
	return Dedupe(append(log, s)), true
}

// Dedupe keeps the last written sample per (timestamp, zone) and orders the
// result by timestamp, then zone.
func Dedupe(log []types.SoilSample) []types.SoilSample {
	type sampleKey struct {
		ts   int64
		zone string
	}
	pos := make(map[sampleKey]int, len(log))
	out := make([]types.SoilSample, 0, len(log))
	for _, s := range log {
		k := sampleKey{ts: s.Timestamp.UnixNano(), zone: s.Zone}
		if i, ok := pos[k]; ok {
			out[i] = s
			continue
		}
		pos[k] = len(out)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Zone < out[j].Zone
	})
	return out
}

// ForZone returns the samples of one zone in time order.
func ForZone(log []types.SoilSample, zone string) []types.SoilSample {
	var out []types.SoilSample
	for _, s := range log {
		if s.Zone == zone {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// window keeps the non-fault samples no older than since.
func window(samples []types.SoilSample, since time.Time) []types.SoilSample {
	var out []types.SoilSample
	for _, s := range samples {
		if s.Timestamp.Before(since) || IsFault(s.Moisture) {
			continue
		}
		out = append(out, s)
	}
	return out
}
