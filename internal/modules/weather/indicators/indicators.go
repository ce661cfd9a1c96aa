// Package indicators derives growing-degree-days and chill days from the
// daily temperature series.
package indicators

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/daily"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// MonthDay is a recurring calendar day such as March 1.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return MonthDay{}, fmt.Errorf("month-day %q: expected MM-DD", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return MonthDay{}, fmt.Errorf("month-day %q: bad month", s)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil || d < 1 || d > 31 {
		return MonthDay{}, fmt.Errorf("month-day %q: bad day", s)
	}
	return MonthDay{Month: time.Month(m), Day: d}, nil
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) ordinal() int { return int(md.Month)*100 + md.Day }

// Of returns the month-day of t.
func Of(t time.Time) MonthDay {
	return MonthDay{Month: t.Month(), Day: t.Day()}
}

// InWindow reports whether md lies in [start, end]. A window whose start is
// after its end wraps over New Year.
func InWindow(md, start, end MonthDay) bool {
	k, s, e := md.ordinal(), start.ordinal(), end.ordinal()
	if s <= e {
		return s <= k && k <= e
	}
	return k >= s || k <= e
}

// Config holds the thresholds the fold depends on.
type Config struct {
	BaseTempC  float64
	GDDStart   MonthDay
	ChillStart MonthDay
	ChillEnd   MonthDay
	ChillMinC  float64
	ChillMaxC  float64

	// ResetGDDEachYear restarts the GDD total at the first qualifying day of
	// every calendar year. Off, the total runs over the whole loaded history.
	ResetGDDEachYear bool
}

// GDD is max(0, mean - base).
func GDD(mean, base float64) float64 {
	return math.Max(0, mean-base)
}

// IsChillDay reports whether a day with the given mean counts toward chill.
func IsChillDay(day time.Time, mean float64, cfg Config) bool {
	if !InWindow(Of(day), cfg.ChillStart, cfg.ChillEnd) {
		return false
	}
	return cfg.ChillMinC <= mean && mean <= cfg.ChillMaxC
}

// Recompute replays the whole series and returns fresh records with every
// derived field filled in. Records missing min or max are passed through
// with derived fields unset and do not move the running totals. The input is
// not modified.
func Recompute(records []types.DailyRecord, cfg Config) []types.DailyRecord {
	out := make([]types.DailyRecord, 0, len(records))
	cumGDD := 0.0
	cumChill := 0
	seasonYear := 0

	for _, r := range records {
		rec := types.DailyRecord{Date: r.Date, Min: r.Min, Max: r.Max}
		mean, ok := daily.Mean(r)
		if !ok {
			out = append(out, rec)
			continue
		}

		g := GDD(mean, cfg.BaseTempC)
		if Of(r.Date).ordinal() >= cfg.GDDStart.ordinal() {
			if cfg.ResetGDDEachYear && r.Date.Year() != seasonYear {
				cumGDD = 0
				seasonYear = r.Date.Year()
			}
			cumGDD += g
		}

		chill := 0
		if IsChillDay(r.Date, mean, cfg) {
			chill = 1
		}
		cumChill += chill

		rec.Mean = types.Float(mean)
		rec.GDD = types.Float(g)
		rec.CumGDD = types.Float(cumGDD)
		rec.Chill = types.Int(chill)
		rec.CumChill = types.Int(cumChill)
		out = append(out, rec)
	}
	return out
}
