// Package daily keeps one min/max record per calendar day.
package daily

import (
	"sort"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Series is the ordered day-by-day temperature record. The zero value is an
// empty series ready to use.
type Series struct {
	records []types.DailyRecord
	index   map[string]int
}

// NewSeries builds a series from persisted records. Bounds are kept as stored,
// so a row missing one bound stays partial. Records sharing a date are folded
// together by widening each present bound.
func NewSeries(records []types.DailyRecord) *Series {
	s := &Series{}
	for _, r := range records {
		i := s.ensure(r.Date)
		cur := &s.records[i]
		if r.Min != nil && (cur.Min == nil || *r.Min < *cur.Min) {
			cur.Min = types.Float(*r.Min)
		}
		if r.Max != nil && (cur.Max == nil || *r.Max > *cur.Max) {
			cur.Max = types.Float(*r.Max)
		}
	}
	return s
}

// DayOf returns the calendar date of t in loc as UTC midnight.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Merge folds one Celsius reading into the record for day. The first reading
// of a day sets min and max; later ones only widen them.
func (s *Series) Merge(day time.Time, celsius float64) {
	i := s.ensure(day)
	r := &s.records[i]
	if r.Min == nil || celsius < *r.Min {
		r.Min = types.Float(celsius)
	}
	if r.Max == nil || celsius > *r.Max {
		r.Max = types.Float(celsius)
	}
}

// MergeHistory applies backfill points, bucketing them into days of loc.
func (s *Series) MergeHistory(points []types.HistoryPoint, loc *time.Location) int {
	for _, p := range points {
		s.Merge(DayOf(p.Time, loc), p.Celsius)
	}
	return len(points)
}

// Records returns a copy of the series in ascending date order.
func (s *Series) Records() []types.DailyRecord {
	out := make([]types.DailyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of days in the series.
func (s *Series) Len() int { return len(s.records) }

// Get returns the record for day.
func (s *Series) Get(day time.Time) (types.DailyRecord, bool) {
	if s.index == nil {
		return types.DailyRecord{}, false
	}
	i, ok := s.index[key(civil(day))]
	if !ok {
		return types.DailyRecord{}, false
	}
	return s.records[i], true
}

// Mean is (min + max) / 2, or unavailable when either bound is missing.
func Mean(r types.DailyRecord) (float64, bool) {
	if r.Min == nil || r.Max == nil {
		return 0, false
	}
	return (*r.Min + *r.Max) / 2, true
}

func (s *Series) ensure(day time.Time) int {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	d := civil(day)
	k := key(d)
	if i, ok := s.index[k]; ok {
		return i
	}
	pos := sort.Search(len(s.records), func(i int) bool { return !s.records[i].Date.Before(d) })
	s.records = append(s.records, types.DailyRecord{})
	copy(s.records[pos+1:], s.records[pos:])
	s.records[pos] = types.DailyRecord{Date: d}
	for j := pos; j < len(s.records); j++ {
		s.index[key(s.records[j].Date)] = j
	}
	return pos
}

// civil keeps the calendar date of day as seen in its own location.
func civil(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func key(day time.Time) string {
	return day.Format(types.DateLayout)
}
