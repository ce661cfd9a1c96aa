package phenology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

var start = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func cumSeries(values ...float64) []types.DailyRecord {
	out := make([]types.DailyRecord, len(values))
	prev := 0.0
	for i, v := range values {
		out[i] = types.DailyRecord{
			Date:   start.AddDate(0, 0, i),
			GDD:    types.Float(v - prev),
			CumGDD: types.Float(v),
		}
		prev = v
	}
	return out
}

func TestCrossingDate(t *testing.T) {
	recs := cumSeries(0, 10, 40, 90, 200)

	got, ok := CrossingDate(recs, 80)
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 3), got, "first value >= 80 is the 4th day")

	got, ok = CrossingDate(recs, 10)
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 1), got, "equality counts as crossing")

	_, ok = CrossingDate(recs, 500)
	assert.False(t, ok, "never reached in history")
}

func TestChillCrossingDate(t *testing.T) {
	recs := []types.DailyRecord{
		{Date: start, CumChill: types.Int(0)},
		{Date: start.AddDate(0, 0, 1)},
		{Date: start.AddDate(0, 0, 2), CumChill: types.Int(1)},
		{Date: start.AddDate(0, 0, 3), CumChill: types.Int(2)},
	}
	got, ok := ChillCrossingDate(recs, 2)
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 3), got)

	_, ok = ChillCrossingDate(recs, 3)
	assert.False(t, ok)
}

func TestRecentRate(t *testing.T) {
	t.Run("fallback with short history", func(t *testing.T) {
		assert.Equal(t, FallbackRate, RecentRate(cumSeries(1, 2, 3)))
	})

	t.Run("mean of trailing seven", func(t *testing.T) {
		// daily gdd: 100 then seven days of 4
		recs := cumSeries(100, 104, 108, 112, 116, 120, 124, 128)
		assert.InDelta(t, 4.0, RecentRate(recs), 1e-9)
	})

	t.Run("skips records without gdd", func(t *testing.T) {
		recs := cumSeries(3, 6, 9, 12, 15, 18, 21)
		recs = append(recs[:3], append([]types.DailyRecord{{Date: start.AddDate(0, 1, 0)}}, recs[3:]...)...)
		assert.InDelta(t, 3.0, RecentRate(recs), 1e-9)
	})
}

func TestProject(t *testing.T) {
	today := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)

	t.Run("applies margin and ceiling", func(t *testing.T) {
		p := Project(50, 80, 4, today)
		// 30 / 4 * 1.2 = 9
		assert.Equal(t, 9, p.ETADays)
		assert.Equal(t, today.AddDate(0, 0, 9), p.Date)
		assert.InDelta(t, 30.0, p.Remaining, 1e-9)
		assert.InDelta(t, 62.5, p.Progress, 1e-9)
		assert.False(t, p.Reached)
	})

	t.Run("rounds partial days up", func(t *testing.T) {
		p := Project(0, 11, 3, today)
		assert.Equal(t, 5, p.ETADays) // 11 / 3 * 1.2 = 4.4
	})

	t.Run("rate floor", func(t *testing.T) {
		p := Project(0, 10, 0, today)
		assert.Equal(t, 24, p.ETADays) // 10 / 0.5 * 1.2
	})

	t.Run("already reached", func(t *testing.T) {
		p := Project(120, 80, 4, today)
		assert.True(t, p.Reached)
		assert.Equal(t, 0, p.ETADays)
		assert.Equal(t, 100.0, p.Progress)
		assert.Equal(t, today, p.Date)
	})
}

func TestLatest(t *testing.T) {
	recs := cumSeries(1, 2)
	recs = append(recs, types.DailyRecord{Date: start.AddDate(0, 0, 5)})
	got, ok := Latest(recs)
	require.True(t, ok)
	assert.Equal(t, 2.0, *got.CumGDD)

	_, ok = Latest(nil)
	assert.False(t, ok)
}
