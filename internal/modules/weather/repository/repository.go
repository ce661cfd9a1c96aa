package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// ErrNoStatus is returned before the first successful run.
var ErrNoStatus = errors.New("no run status stored")

// Snapshot is everything a run persists. It is committed as a whole.
type Snapshot struct {
	RunID   string
	At      time.Time
	Daily   []types.DailyRecord
	Samples []types.SoilSample
	Status  json.RawMessage
	Raw     json.RawMessage
}

// WeatherRepository persists the daily series, the soil sample log and the
// last run's status.
type WeatherRepository interface {
	LoadDaily() ([]types.DailyRecord, error)
	LoadSamples() ([]types.SoilSample, error)
	LoadStatus() (json.RawMessage, error)
	GetDaily(from, to time.Time, limit int) ([]types.DailyRecord, error)
	GetSamples(zone string, from, to time.Time, limit int) ([]types.SoilSample, error)
	Commit(s Snapshot) error
}

// filterDaily keeps records dated within [from, to] (zero bounds are open)
// and returns at most the limit most recent, oldest first.
func filterDaily(records []types.DailyRecord, from, to time.Time, limit int) []types.DailyRecord {
	out := []types.DailyRecord{}
	for _, r := range records {
		if !from.IsZero() && r.Date.Before(dateOf(from)) {
			continue
		}
		if !to.IsZero() && r.Date.After(dateOf(to)) {
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func filterSamples(samples []types.SoilSample, zone string, from, to time.Time, limit int) []types.SoilSample {
	out := []types.SoilSample{}
	for _, s := range samples {
		if s.Zone != zone {
			continue
		}
		if !from.IsZero() && s.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && s.Timestamp.After(to) {
			continue
		}
		out = append(out, s)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// dateOf truncates t to its calendar date as written, at UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
