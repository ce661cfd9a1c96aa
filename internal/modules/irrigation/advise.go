package irrigation

import (
	"math"
	"sort"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Status of a zone report.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusInsufficientHistory Status = "insufficient_history"
)

// Reason explains a recommendation. Every reason can be reproduced from the
// numbers reported next to it.
type Reason string

const (
	ReasonAtTarget          Reason = "at_or_above_target"
	ReasonDryingWithDeficit Reason = "drying_with_deficit"
	ReasonHeat              Reason = "heat_evaporation_risk"
	ReasonOvershoot         Reason = "overshoot_risk"
	ReasonCapped            Reason = "capped_at_max_duration"
)

// Dose is one watering pulse, offset from the time of the recommendation.
type Dose struct {
	OffsetMinutes float64 `json:"offsetMinutes"`
	Minutes       float64 `json:"minutes"`
}

// Recommendation is what to apply now.
type Recommendation struct {
	TargetRel      float64  `json:"targetRel"`
	Deficit        float64  `json:"deficit"`
	DepthMM        float64  `json:"depthMm"`
	VolumeLPerM2   float64  `json:"volumeLPerM2"`
	Minutes        float64  `json:"minutes"`
	RateMMPerHour  float64  `json:"rateMmPerHour"`
	PredictedAfter float64  `json:"predictedAfter"`
	Cycling        bool     `json:"cycling"`
	Doses          []Dose   `json:"doses"`
	Reasons        []Reason `json:"reasons"`
}

// ZoneReport is the derived irrigation state of one zone.
type ZoneReport struct {
	Zone           string            `json:"zone"`
	Status         Status            `json:"status"`
	Samples        int               `json:"samples"`
	Latest         *types.SoilSample `json:"latest,omitempty"`
	Calibration    *Calibration      `json:"calibration,omitempty"`
	ThetaRel       *float64          `json:"thetaRel,omitempty"`
	Trend          *Trend            `json:"trend,omitempty"`
	Response       *Response         `json:"response,omitempty"`
	Recommendation *Recommendation   `json:"recommendation,omitempty"`
}

// Analyze derives the report of one zone from its sample log as of now.
// Samples of other zones are ignored.
func Analyze(zone string, log []types.SoilSample, now time.Time, cfg Config) ZoneReport {
	p := cfg.Params
	samples := window(ForZone(log, zone), windowStart(now, p))
	report := ZoneReport{Zone: zone, Samples: len(samples)}
	if len(samples) == 0 || len(samples) < p.MinSamples {
		report.Status = StatusInsufficientHistory
		return report
	}

	latest := samples[len(samples)-1]
	cal := calibrate(samples, p)
	rel := cal.Rel(latest.Moisture)
	tr := trend(samples, p)
	resp := response(samples, cal, cfg)

	report.Status = StatusOK
	report.Latest = &latest
	report.Calibration = &cal
	report.ThetaRel = &rel
	report.Trend = &tr
	report.Response = &resp
	rec := recommend(rel, latest.InsideC, tr, resp.K, cfg)
	report.Recommendation = &rec
	return report
}

// AnalyzeAll reports every zone present in the log plus any extra zones,
// ordered by zone name.
func AnalyzeAll(log []types.SoilSample, zones []string, now time.Time, cfg Config) []ZoneReport {
	seen := map[string]bool{}
	for _, z := range zones {
		seen[z] = true
	}
	for _, s := range log {
		seen[s.Zone] = true
	}
	names := make([]string, 0, len(seen))
	for z := range seen {
		names = append(names, z)
	}
	sort.Strings(names)

	out := make([]ZoneReport, 0, len(names))
	for _, z := range names {
		out = append(out, Analyze(z, log, now, cfg))
	}
	return out
}

func recommend(rel float64, insideC *float64, tr Trend, k float64, cfg Config) Recommendation {
	p := cfg.Params
	rate := cfg.RateMMPerHour
	rec := Recommendation{
		TargetRel:     cfg.TargetRel,
		RateMMPerHour: rate,
		Deficit:       math.Max(0, cfg.TargetRel-rel),
		Doses:         []Dose{},
		Reasons:       []Reason{},
	}

	needed := rec.Deficit / k
	rawMinutes := needed / rate * 60
	rec.Minutes = clamp(rawMinutes, 0, p.MaxMinutes)
	rec.DepthMM = rate * rec.Minutes / 60
	// 1 mm over 1 m² is 1 L.
	rec.VolumeLPerM2 = rec.DepthMM
	rec.PredictedAfter = math.Min(1, rel+k*rec.DepthMM)

	if rec.Minutes == 0 {
		rec.Reasons = append(rec.Reasons, ReasonAtTarget)
		return rec
	}
	if rawMinutes > p.MaxMinutes {
		rec.Reasons = append(rec.Reasons, ReasonCapped)
	}

	if rec.Deficit > p.CycleDeficit && tr.Slope6h < 0 {
		rec.Reasons = append(rec.Reasons, ReasonDryingWithDeficit)
		rec.Cycling = true
	}
	if insideC != nil && *insideC >= p.HeatC {
		rec.Reasons = append(rec.Reasons, ReasonHeat)
		rec.Cycling = true
	}
	if rec.PredictedAfter >= p.OvershootRel && rec.Minutes >= p.OvershootMinutes {
		rec.Reasons = append(rec.Reasons, ReasonOvershoot)
		rec.Cycling = true
	}

	if rec.Cycling {
		half := rec.Minutes / 2
		rec.Doses = append(rec.Doses,
			Dose{OffsetMinutes: 0, Minutes: half},
			Dose{OffsetMinutes: p.CycleGap.Minutes(), Minutes: half},
		)
	} else {
		rec.Doses = append(rec.Doses, Dose{OffsetMinutes: 0, Minutes: rec.Minutes})
	}
	return rec
}
