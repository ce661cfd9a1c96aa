package repository

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Output file names under the data directory.
const (
	DailyFile  = "daily.csv"
	SoilFile   = "soil_log.csv"
	StatusFile = "status.json"
	RawFile    = "raw_last.json"
)

var (
	dailyHeader = []string{"date", "tmin", "tmax", "tmean", "gdd", "cum_gdd", "chill", "cum_chill"}
	soilHeader  = []string{"timestamp", "zone", "moisture", "inside_c", "outside_c", "soil_c"}
)

type fileRepository struct {
	dir string
}

// NewFileRepository stores state as CSV and JSON files in dir.
func NewFileRepository(dir string) WeatherRepository {
	return &fileRepository{dir: dir}
}

func (r *fileRepository) path(name string) string {
	return filepath.Join(r.dir, name)
}

func (r *fileRepository) LoadDaily() ([]types.DailyRecord, error) {
	rows, err := readCSV(r.path(DailyFile), dailyHeader)
	if err != nil {
		return nil, err
	}
	out := make([]types.DailyRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseDailyRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", DailyFile, i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *fileRepository) LoadSamples() ([]types.SoilSample, error) {
	rows, err := readCSV(r.path(SoilFile), soilHeader)
	if err != nil {
		return nil, err
	}
	out := make([]types.SoilSample, 0, len(rows))
	for i, row := range rows {
		s, err := parseSoilRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", SoilFile, i+2, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fileRepository) LoadStatus() (json.RawMessage, error) {
	b, err := os.ReadFile(r.path(StatusFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoStatus
	}
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	return b, nil
}

func (r *fileRepository) GetDaily(from, to time.Time, limit int) ([]types.DailyRecord, error) {
	all, err := r.LoadDaily()
	if err != nil {
		return nil, err
	}
	return filterDaily(all, from, to, limit), nil
}

func (r *fileRepository) GetSamples(zone string, from, to time.Time, limit int) ([]types.SoilSample, error) {
	all, err := r.LoadSamples()
	if err != nil {
		return nil, err
	}
	return filterSamples(all, zone, from, to, limit), nil
}

// Commit renders every file in memory, writes them next to their targets and
// only then renames them into place. A failure before the first rename
// leaves the previous state untouched.
func (r *fileRepository) Commit(s Snapshot) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	daily, err := encodeDaily(s.Daily)
	if err != nil {
		return err
	}
	soil, err := encodeSoil(s.Samples)
	if err != nil {
		return err
	}
	files := []struct {
		name string
		body []byte
	}{
		{DailyFile, daily},
		{SoilFile, soil},
		{RawFile, s.Raw},
		{StatusFile, s.Status},
	}

	temps := make([]string, 0, len(files))
	defer func() {
		for _, t := range temps {
			if err := os.Remove(t); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("remove temp file", "path", t, "error", err)
			}
		}
	}()
	for _, f := range files {
		tmp, err := writeTemp(r.dir, f.name, f.body)
		if err != nil {
			return err
		}
		temps = append(temps, tmp)
	}
	for i, f := range files {
		if err := os.Rename(temps[i], r.path(f.name)); err != nil {
			return fmt.Errorf("replace %s: %w", f.name, err)
		}
	}
	return nil
}

func writeTemp(dir, name string, body []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return f.Name(), fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return f.Name(), fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return f.Name(), fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

// readCSV returns the data rows of path. A missing file is an empty table.
func readCSV(path string, header []string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

func encodeDaily(records []types.DailyRecord) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.Format(types.DateLayout),
			formatFloat(r.Min),
			formatFloat(r.Max),
			formatFloat(r.Mean),
			formatFloat(r.GDD),
			formatFloat(r.CumGDD),
			formatInt(r.Chill),
			formatInt(r.CumChill),
		})
	}
	return encodeCSV(dailyHeader, rows)
}

func encodeSoil(samples []types.SoilSample) ([]byte, error) {
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			s.Timestamp.Format(time.RFC3339Nano),
			s.Zone,
			strconv.FormatFloat(s.Moisture, 'f', -1, 64),
			formatFloat(s.InsideC),
			formatFloat(s.OutsideC),
			formatFloat(s.SoilC),
		})
	}
	return encodeCSV(soilHeader, rows)
}

func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	if err := cw.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func parseDailyRow(row []string) (types.DailyRecord, error) {
	date, err := time.Parse(types.DateLayout, row[0])
	if err != nil {
		return types.DailyRecord{}, fmt.Errorf("date %q: %w", row[0], err)
	}
	rec := types.DailyRecord{Date: date}
	floats := []**float64{&rec.Min, &rec.Max, &rec.Mean, &rec.GDD, &rec.CumGDD}
	for i, dst := range floats {
		if *dst, err = parseFloat(row[1+i]); err != nil {
			return types.DailyRecord{}, fmt.Errorf("%s: %w", dailyHeader[1+i], err)
		}
	}
	if rec.Chill, err = parseInt(row[6]); err != nil {
		return types.DailyRecord{}, fmt.Errorf("chill: %w", err)
	}
	if rec.CumChill, err = parseInt(row[7]); err != nil {
		return types.DailyRecord{}, fmt.Errorf("cum_chill: %w", err)
	}
	return rec, nil
}

func parseSoilRow(row []string) (types.SoilSample, error) {
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return types.SoilSample{}, fmt.Errorf("timestamp %q: %w", row[0], err)
	}
	m, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return types.SoilSample{}, fmt.Errorf("moisture %q: %w", row[2], err)
	}
	s := types.SoilSample{Timestamp: ts, Zone: row[1], Moisture: m}
	if s.InsideC, err = parseFloat(row[3]); err != nil {
		return types.SoilSample{}, err
	}
	if s.OutsideC, err = parseFloat(row[4]); err != nil {
		return types.SoilSample{}, err
	}
	if s.SoilC, err = parseFloat(row[5]); err != nil {
		return types.SoilSample{}, err
	}
	return s, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// parseFloat treats an empty cell as unavailable.
func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return &v, nil
}

func parseInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return &v, nil
}
