// Package service runs one collection cycle: fetch, recompute everything
// from the persisted history, commit, publish.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/irrigation"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/daily"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/extract"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/indicators"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/repository"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/source"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Config is the immutable configuration of a run.
type Config struct {
	StationID       string
	Location        *time.Location
	Layout          extract.Layout
	PrimaryZone     string // zone whose temperature feeds the daily series
	HistoryCallback string // empty disables backfill
	HistoryDays     int

	Indicators      indicators.Config
	ChillTargetDays int
	BudGDD          float64
	BloomGDD        float64

	Irrigation irrigation.Config
}

// Publisher receives run results after they are committed. subtopic is
// relative to the station's topic root.
type Publisher interface {
	Publish(subtopic string, payload []byte) error
}

type Service struct {
	cfg       Config
	source    source.Source
	repo      repository.WeatherRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a run. publisher may be nil.
func NewService(cfg Config, src source.Source, repo repository.WeatherRepository, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		cfg:       cfg,
		source:    src,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs one cycle. Nothing is written unless every step before the
// commit succeeded.
func (s *Service) Run(ctx context.Context) (Status, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	now := s.now().In(s.cfg.Location)

	raw, err := s.source.Current(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("fetch current: %w", err)
	}
	obs, err := extract.Current(raw, s.cfg.Layout, now)
	if err != nil {
		return Status{}, fmt.Errorf("extract current: %w", err)
	}
	obs.Timestamp = obs.Timestamp.In(s.cfg.Location)

	stored, err := s.repo.LoadDaily()
	if err != nil {
		return Status{}, fmt.Errorf("load daily: %w", err)
	}
	samples, err := s.repo.LoadSamples()
	if err != nil {
		return Status{}, fmt.Errorf("load soil samples: %w", err)
	}

	series := daily.NewSeries(stored)
	backfill := s.backfill(ctx, logger, series, now)
	today := daily.DayOf(obs.Timestamp, s.cfg.Location)
	if t := obs.Temperatures[s.cfg.PrimaryZone]; t != nil {
		series.Merge(today, *t)
	} else {
		logger.Warn("primary zone temperature unavailable", "zone", s.cfg.PrimaryZone)
	}
	records := indicators.Recompute(series.Records(), s.cfg.Indicators)

	moisture := make(map[string]*float64, len(s.cfg.Layout.SoilProbes))
	for _, zone := range sortedKeys(s.cfg.Layout.SoilProbes) {
		sample, ok := s.soilSample(obs, zone)
		if !ok {
			moisture[zone] = nil
			logger.Warn("no active soil probe", "zone", zone)
			continue
		}
		moisture[zone] = types.Float(sample.Moisture)
		samples, _ = irrigation.Append(samples, sample)
	}
	samples = irrigation.Dedupe(samples)
	reports := irrigation.AnalyzeAll(samples, sortedKeys(s.cfg.Layout.SoilProbes), now, s.cfg.Irrigation)

	status := Status{
		RunID:      runID,
		StationID:  s.cfg.StationID,
		UpdatedAt:  now,
		ObservedAt: obs.Timestamp,
		Current: Current{
			TemperaturesC:   obs.Temperatures,
			OutdoorC:        obs.OutdoorC,
			SoilC:           obs.SoilC,
			SoilMoisturePct: moisture,
		},
		Days:       len(records),
		Backfill:   backfill,
		GDD:        s.gddStatus(records, today),
		Chill:      s.chillStatus(records),
		Irrigation: reports,
	}
	for i := range records {
		if records[i].Date.Equal(today) {
			rec := records[i]
			status.Current.Today = &rec
		}
	}

	body, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return Status{}, fmt.Errorf("encode status: %w", err)
	}
	err = s.repo.Commit(repository.Snapshot{
		RunID:   runID,
		At:      now,
		Daily:   records,
		Samples: samples,
		Status:  body,
		Raw:     raw,
	})
	if err != nil {
		return Status{}, fmt.Errorf("commit: %w", err)
	}
	logger.Info("run committed",
		"days", status.Days,
		"gdd_total", status.GDD.Total,
		"chill_total", status.Chill.Total,
		"zones", len(reports),
	)

	s.publish(logger, status, body)
	return status, nil
}

// backfill merges the optional history series. Failures only cost the
// backfill, never the run.
func (s *Service) backfill(ctx context.Context, logger *slog.Logger, series *daily.Series, now time.Time) Backfill {
	if s.cfg.HistoryCallback == "" {
		return Backfill{}
	}
	b := Backfill{Enabled: true}
	days := s.cfg.HistoryDays
	if days <= 0 {
		days = 1
	}
	payload, err := s.source.History(ctx, s.cfg.HistoryCallback, now.AddDate(0, 0, -days), now)
	if err == nil {
		var points []types.HistoryPoint
		channel, field := splitCallback(s.cfg.HistoryCallback)
		points, err = extract.History(payload, channel, field)
		if err == nil {
			b.Points = series.MergeHistory(points, s.cfg.Location)
			logger.Debug("history merged", "points", b.Points)
			return b
		}
	}
	if errors.Is(err, source.ErrNoHistory) {
		logger.Debug("source has no history")
	} else {
		logger.Warn("history backfill failed", "error", err)
	}
	b.Error = err.Error()
	return b
}

func (s *Service) soilSample(obs types.Observation, zone string) (types.SoilSample, bool) {
	probes := make([]*float64, 0, len(s.cfg.Layout.SoilProbes[zone]))
	for _, ch := range s.cfg.Layout.SoilProbes[zone] {
		probes = append(probes, obs.SoilMoisture[ch])
	}
	m, ok := irrigation.Representative(probes)
	if !ok {
		return types.SoilSample{}, false
	}
	return types.SoilSample{
		Timestamp: obs.Timestamp,
		Zone:      zone,
		Moisture:  m,
		InsideC:   obs.Temperatures[zone],
		OutsideC:  obs.OutdoorC,
		SoilC:     obs.SoilC,
	}, true
}

func (s *Service) publish(logger *slog.Logger, status Status, body []byte) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish("status", body); err != nil {
		logger.Error("publish status failed", "error", err)
	}
	for _, r := range status.Irrigation {
		payload, err := json.Marshal(r)
		if err != nil {
			logger.Error("encode zone report", "zone", r.Zone, "error", err)
			continue
		}
		if err := s.publisher.Publish("irrigation/"+r.Zone, payload); err != nil {
			logger.Error("publish zone report failed", "zone", r.Zone, "error", err)
		}
	}
}

// splitCallback turns "temp_and_humidity_ch1.temperature" into its channel
// and field. A bare channel reads its temperature.
func splitCallback(cb string) (string, string) {
	if i := strings.LastIndex(cb, "."); i >= 0 {
		return cb[:i], cb[i+1:]
	}
	return cb, extract.TemperatureField
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
