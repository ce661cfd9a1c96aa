package repository

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

//go:embed sql/load-daily.sql
var loadDailySQL string

//go:embed sql/get-daily.sql
var getDailySQL string

//go:embed sql/upsert-daily.sql
var upsertDailySQL string

//go:embed sql/load-samples.sql
var loadSamplesSQL string

//go:embed sql/get-samples.sql
var getSamplesSQL string

//go:embed sql/upsert-sample.sql
var upsertSampleSQL string

//go:embed sql/get-latest-status.sql
var getLatestStatusSQL string

//go:embed sql/insert-status.sql
var insertStatusSQL string

//go:embed sql/insert-raw-payload.sql
var insertRawPayloadSQL string

// tsLayout is fixed width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	minDate = "0000-01-01"
	maxDate = "9999-12-31"
)

type repositoryImpl struct {
	db *sql.DB
}

// NewRepository stores state in the migrated SQLite database db.
func NewRepository(db *sql.DB) WeatherRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) LoadDaily() ([]types.DailyRecord, error) {
	rows, err := r.db.Query(loadDailySQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close daily rows", "error", err)
		}
	}()
	return scanDaily(rows)
}

func (r *repositoryImpl) GetDaily(from, to time.Time, limit int) ([]types.DailyRecord, error) {
	lo, hi := minDate, maxDate
	if !from.IsZero() {
		lo = from.Format(types.DateLayout)
	}
	if !to.IsZero() {
		hi = to.Format(types.DateLayout)
	}
	rows, err := r.db.Query(getDailySQL, lo, hi, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close daily rows", "error", err)
		}
	}()
	return scanDaily(rows)
}

func (r *repositoryImpl) LoadSamples() ([]types.SoilSample, error) {
	rows, err := r.db.Query(loadSamplesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close soil sample rows", "error", err)
		}
	}()
	return scanSamples(rows)
}

func (r *repositoryImpl) GetSamples(zone string, from, to time.Time, limit int) ([]types.SoilSample, error) {
	lo, hi := "", "9999"
	if !from.IsZero() {
		lo = from.UTC().Format(tsLayout)
	}
	if !to.IsZero() {
		hi = to.UTC().Format(tsLayout)
	}
	rows, err := r.db.Query(getSamplesSQL, zone, lo, hi, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close soil sample rows", "error", err)
		}
	}()
	return scanSamples(rows)
}

func (r *repositoryImpl) LoadStatus() (json.RawMessage, error) {
	var body string
	err := r.db.QueryRow(getLatestStatusSQL).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoStatus
	}
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	return json.RawMessage(body), nil
}

// Commit writes the snapshot in a single transaction.
func (r *repositoryImpl) Commit(s Snapshot) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("rollback commit", "error", rbErr)
			}
		}
	}()

	if err = upsertDaily(tx, s.Daily); err != nil {
		return err
	}
	if err = upsertSamples(tx, s.Samples); err != nil {
		return err
	}
	at := s.At.UTC().Format(tsLayout)
	if _, err = tx.Exec(insertRawPayloadSQL, s.RunID, at, string(s.Raw)); err != nil {
		return fmt.Errorf("insert raw payload: %w", err)
	}
	if _, err = tx.Exec(insertStatusSQL, s.RunID, at, string(s.Status)); err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertDaily(tx *sql.Tx, records []types.DailyRecord) error {
	stmt, err := tx.Prepare(upsertDailySQL)
	if err != nil {
		return fmt.Errorf("prepare daily upsert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range records {
		_, err := stmt.Exec(
			rec.Date.Format(types.DateLayout),
			nullFloat(rec.Min), nullFloat(rec.Max), nullFloat(rec.Mean),
			nullFloat(rec.GDD), nullFloat(rec.CumGDD),
			nullInt(rec.Chill), nullInt(rec.CumChill),
		)
		if err != nil {
			return fmt.Errorf("upsert daily %s: %w", rec.Date.Format(types.DateLayout), err)
		}
	}
	return nil
}

func upsertSamples(tx *sql.Tx, samples []types.SoilSample) error {
	stmt, err := tx.Prepare(upsertSampleSQL)
	if err != nil {
		return fmt.Errorf("prepare sample upsert: %w", err)
	}
	defer stmt.Close()
	for _, s := range samples {
		_, err := stmt.Exec(
			s.Timestamp.UTC().Format(tsLayout), s.Zone, s.Moisture,
			nullFloat(s.InsideC), nullFloat(s.OutsideC), nullFloat(s.SoilC),
		)
		if err != nil {
			return fmt.Errorf("upsert sample %s/%s: %w", s.Zone, s.Timestamp.Format(time.RFC3339), err)
		}
	}
	return nil
}

func scanDaily(rows *sql.Rows) ([]types.DailyRecord, error) {
	out := []types.DailyRecord{}
	for rows.Next() {
		var date string
		var tmin, tmax, tmean, gdd, cumGDD sql.NullFloat64
		var chill, cumChill sql.NullInt64
		if err := rows.Scan(&date, &tmin, &tmax, &tmean, &gdd, &cumGDD, &chill, &cumChill); err != nil {
			return nil, err
		}
		d, err := time.Parse(types.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		out = append(out, types.DailyRecord{
			Date:     d,
			Min:      floatPtr(tmin),
			Max:      floatPtr(tmax),
			Mean:     floatPtr(tmean),
			GDD:      floatPtr(gdd),
			CumGDD:   floatPtr(cumGDD),
			Chill:    intPtr(chill),
			CumChill: intPtr(cumChill),
		})
	}
	return out, rows.Err()
}

func scanSamples(rows *sql.Rows) ([]types.SoilSample, error) {
	out := []types.SoilSample{}
	for rows.Next() {
		var s types.SoilSample
		var ts string
		var inside, outside, soil sql.NullFloat64
		if err := rows.Scan(&ts, &s.Zone, &s.Moisture, &inside, &outside, &soil); err != nil {
			return nil, err
		}
		t, err := time.Parse(tsLayout, ts)
		if err != nil {
			var err2 error
			t, err2 = time.Parse(time.RFC3339Nano, ts)
			if err2 != nil {
				return nil, fmt.Errorf("parse timestamp %q: %w; RFC3339Nano: %w", ts, err, err2)
			}
		}
		s.Timestamp = t
		s.InsideC, s.OutsideC, s.SoilC = floatPtr(inside), floatPtr(outside), floatPtr(soil)
		out = append(out, s)
	}
	return out, rows.Err()
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
