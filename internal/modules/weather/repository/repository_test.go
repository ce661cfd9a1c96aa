package repository

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjin8128-hub/kiwi-last/internal/migrate"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

var kst = time.FixedZone("KST", 9*3600)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	_, err = migrate.Run(db, nil)
	require.NoError(t, err)
	return db
}

// backends runs fn against both stores.
func backends(t *testing.T, fn func(t *testing.T, repo WeatherRepository)) {
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileRepository(filepath.Join(t.TempDir(), "data")))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewRepository(setupTestDB(t)))
	})
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func snapshot() Snapshot {
	return Snapshot{
		RunID: "run-1",
		At:    time.Date(2025, time.March, 3, 12, 0, 0, 0, kst),
		Daily: []types.DailyRecord{
			{Date: day(1), Min: types.Float(2.5), Max: types.Float(12.25), Mean: types.Float(7.375),
				GDD: types.Float(0), CumGDD: types.Float(0), Chill: types.Int(0), CumChill: types.Int(0)},
			{Date: day(2), Min: types.Float(4)},
			{Date: day(3), Min: types.Float(5), Max: types.Float(21), Mean: types.Float(13),
				GDD: types.Float(3), CumGDD: types.Float(3), Chill: types.Int(0), CumChill: types.Int(0)},
		},
		Samples: []types.SoilSample{
			{Timestamp: time.Date(2025, time.March, 3, 9, 0, 0, 0, kst), Zone: "2동", Moisture: 31.5, InsideC: types.Float(18)},
			{Timestamp: time.Date(2025, time.March, 3, 10, 0, 0, 0, kst), Zone: "2동", Moisture: 30},
			{Timestamp: time.Date(2025, time.March, 3, 10, 0, 0, 0, kst), Zone: "3동", Moisture: 0},
		},
		Status: json.RawMessage(`{"runId":"run-1"}`),
		Raw:    json.RawMessage(`{"code":0}`),
	}
}

func TestEmptyRepository(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		daily, err := repo.LoadDaily()
		require.NoError(t, err)
		assert.Empty(t, daily)

		samples, err := repo.LoadSamples()
		require.NoError(t, err)
		assert.Empty(t, samples)

		_, err = repo.LoadStatus()
		assert.ErrorIs(t, err, ErrNoStatus)
	})
}

func TestCommitRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		want := snapshot()
		require.NoError(t, repo.Commit(want))

		daily, err := repo.LoadDaily()
		require.NoError(t, err)
		require.Len(t, daily, 3)
		assert.True(t, daily[0].Date.Equal(day(1)), "first date = %v", daily[0].Date)
		assert.InDelta(t, 12.25, *daily[0].Max, 1e-9)
		assert.InDelta(t, 7.375, *daily[0].Mean, 1e-9)

		assert.Nil(t, daily[1].Max, "partial record lost its nils")
		assert.Nil(t, daily[1].CumGDD)
		assert.Nil(t, daily[1].Chill)
		require.NotNil(t, daily[1].Min)
		assert.InDelta(t, 4, *daily[1].Min, 1e-9)

		samples, err := repo.LoadSamples()
		require.NoError(t, err)
		require.Len(t, samples, 3)
		assert.True(t, samples[0].Timestamp.Equal(want.Samples[0].Timestamp), "timestamp = %v", samples[0].Timestamp)
		require.NotNil(t, samples[0].InsideC)
		assert.InDelta(t, 18, *samples[0].InsideC, 1e-9)
		assert.Nil(t, samples[0].SoilC)
		assert.Zero(t, samples[2].Moisture, "fault value not stored as is")

		status, err := repo.LoadStatus()
		require.NoError(t, err)
		assert.JSONEq(t, `{"runId":"run-1"}`, string(status))
	})
}

func TestCommitReplaces(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		first := snapshot()
		require.NoError(t, repo.Commit(first))

		second := snapshot()
		second.RunID = "run-2"
		second.At = first.At.Add(time.Hour)
		second.Daily[1].Max = types.Float(15)
		second.Samples[1].Moisture = 29
		second.Status = json.RawMessage(`{"runId":"run-2"}`)
		require.NoError(t, repo.Commit(second))

		daily, err := repo.LoadDaily()
		require.NoError(t, err)
		require.Len(t, daily, 3)
		require.NotNil(t, daily[1].Max, "daily not replaced")
		assert.InDelta(t, 15, *daily[1].Max, 1e-9)

		samples, err := repo.LoadSamples()
		require.NoError(t, err)
		require.Len(t, samples, 3)
		assert.InDelta(t, 29, samples[1].Moisture, 1e-9)

		status, err := repo.LoadStatus()
		require.NoError(t, err)
		assert.JSONEq(t, `{"runId":"run-2"}`, string(status))
	})
}

func TestGetDaily(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		require.NoError(t, repo.Commit(snapshot()))

		tests := []struct {
			name     string
			from, to time.Time
			limit    int
			want     []time.Time
		}{
			{"all", time.Time{}, time.Time{}, 0, []time.Time{day(1), day(2), day(3)}},
			{"from", day(2), time.Time{}, 0, []time.Time{day(2), day(3)}},
			{"to", time.Time{}, day(2), 0, []time.Time{day(1), day(2)}},
			{"limit keeps most recent", time.Time{}, time.Time{}, 2, []time.Time{day(2), day(3)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.GetDaily(tt.from, tt.to, tt.limit)
				require.NoError(t, err)
				require.Len(t, got, len(tt.want))
				for i := range got {
					assert.True(t, got[i].Date.Equal(tt.want[i]), "record %d date = %v, want %v", i, got[i].Date, tt.want[i])
				}
			})
		}
	})
}

func TestGetSamples(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		snap := snapshot()
		require.NoError(t, repo.Commit(snap))

		got, err := repo.GetSamples("2동", time.Time{}, time.Time{}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = repo.GetSamples("2동", snap.Samples[1].Timestamp, time.Time{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 30, got[0].Moisture, 1e-9)

		got, err = repo.GetSamples("9동", time.Time{}, time.Time{}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFileRepositoryLayout(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	require.NoError(t, repo.Commit(snapshot()))

	daily, err := os.ReadFile(filepath.Join(dir, DailyFile))
	require.NoError(t, err)
	wantDaily := "date,tmin,tmax,tmean,gdd,cum_gdd,chill,cum_chill\n" +
		"2025-03-01,2.5,12.25,7.375,0,0,0,0\n" +
		"2025-03-02,4,,,,,,\n" +
		"2025-03-03,5,21,13,3,3,0,0\n"
	assert.Equal(t, wantDaily, string(daily))

	raw, err := os.ReadFile(filepath.Join(dir, RawFile))
	require.NoError(t, err)
	assert.Equal(t, `{"code":0}`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Len(t, names, 4, "data dir holds %v, want exactly the four outputs", names)
}

func TestFileRepositoryRejectsCorruptCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DailyFile), []byte("date,tmin,tmax,tmean,gdd,cum_gdd,chill,cum_chill\nnot-a-date,1,2,,,,,\n"), 0o644))

	_, err := NewFileRepository(dir).LoadDaily()
	assert.Error(t, err, "expected error for corrupt row")
}

func TestPartialRowsSurviveReload(t *testing.T) {
	backends(t, func(t *testing.T, repo WeatherRepository) {
		snap := snapshot()
		snap.Daily = []types.DailyRecord{
			{Date: day(4), Min: types.Float(30)},
			{Date: day(5), Max: types.Float(12)},
		}
		require.NoError(t, repo.Commit(snap))

		daily, err := repo.LoadDaily()
		require.NoError(t, err)
		require.Len(t, daily, 2)
		require.NotNil(t, daily[0].Min)
		assert.InDelta(t, 30, *daily[0].Min, 1e-9)
		assert.Nil(t, daily[0].Max)
		assert.Nil(t, daily[1].Min)
		require.NotNil(t, daily[1].Max)
		assert.InDelta(t, 12, *daily[1].Max, 1e-9)
	})
}
