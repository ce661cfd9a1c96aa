// Package phenology answers two separate questions about the cumulative
// series: when a threshold was crossed, and when it is likely to be.
package phenology

import (
	"math"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

const (
	// RateWindow is the number of trailing derived days averaged for the
	// forward projection.
	RateWindow = 7
	// FallbackRate is used while fewer than RateWindow days are available.
	FallbackRate = 2.0
	// MinRate floors the rate so near-zero warmth cannot blow up the ETA.
	MinRate = 0.5
	// SafetyMargin stretches every projection by 20%.
	SafetyMargin = 1.2
)

// CrossingDate returns the first date whose cumulative GDD reaches threshold.
func CrossingDate(records []types.DailyRecord, threshold float64) (time.Time, bool) {
	for _, r := range records {
		if r.CumGDD != nil && *r.CumGDD >= threshold {
			return r.Date, true
		}
	}
	return time.Time{}, false
}

// ChillCrossingDate returns the first date whose cumulative chill reaches target.
func ChillCrossingDate(records []types.DailyRecord, target int) (time.Time, bool) {
	for _, r := range records {
		if r.CumChill != nil && *r.CumChill >= target {
			return r.Date, true
		}
	}
	return time.Time{}, false
}

// Latest returns the most recent derived record.
func Latest(records []types.DailyRecord) (types.DailyRecord, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].CumGDD != nil {
			return records[i], true
		}
	}
	return types.DailyRecord{}, false
}

// RecentRate is the mean daily GDD over the trailing RateWindow derived
// records, or FallbackRate when the history is shorter than that.
func RecentRate(records []types.DailyRecord) float64 {
	sum := 0.0
	n := 0
	for i := len(records) - 1; i >= 0 && n < RateWindow; i-- {
		if records[i].GDD == nil {
			continue
		}
		sum += *records[i].GDD
		n++
	}
	if n < RateWindow {
		return FallbackRate
	}
	return sum / float64(n)
}

// Projection is a forward estimate for one threshold.
type Projection struct {
	Threshold float64   `json:"threshold"`
	Remaining float64   `json:"remaining"`
	Progress  float64   `json:"progressPct"`
	Reached   bool      `json:"reached"`
	ETADays   int       `json:"etaDays"`
	Date      time.Time `json:"date"`
}

// Project estimates when current will reach threshold growing at rate per
// day, counted from today:
//
//	etaDays = ceil(remaining / max(rate, MinRate) * SafetyMargin)
func Project(current, threshold, rate float64, today time.Time) Projection {
	p := Projection{
		Threshold: threshold,
		Remaining: math.Max(0, threshold-current),
		Progress:  Percent(current, threshold),
	}
	if p.Remaining == 0 {
		p.Reached = true
		p.Date = today
		return p
	}
	p.ETADays = int(math.Ceil(p.Remaining / math.Max(rate, MinRate) * SafetyMargin))
	p.Date = today.AddDate(0, 0, p.ETADays)
	return p
}

// Percent is current/target as a percentage capped at 100. A non-positive
// target counts as done.
func Percent(current, target float64) float64 {
	if target <= 0 {
		return 100
	}
	return math.Min(100, math.Max(0, current/target*100))
}
