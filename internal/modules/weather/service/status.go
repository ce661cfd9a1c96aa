package service

import (
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/irrigation"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/phenology"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Status is the summary of one run, persisted as status.json and published
// on the status topic.
type Status struct {
	RunID      string                  `json:"runId"`
	StationID  string                  `json:"stationId"`
	UpdatedAt  time.Time               `json:"updatedAt"`
	ObservedAt time.Time               `json:"observedAt"`
	Current    Current                 `json:"current"`
	Days       int                     `json:"days"`
	Backfill   Backfill                `json:"backfill"`
	GDD        GDDStatus               `json:"gdd"`
	Chill      ChillStatus             `json:"chill"`
	Irrigation []irrigation.ZoneReport `json:"irrigation"`
}

// Current is the reading the run was triggered by.
type Current struct {
	TemperaturesC   map[string]*float64 `json:"temperaturesC"`
	OutdoorC        *float64            `json:"outdoorC"`
	SoilC           *float64            `json:"soilC"`
	SoilMoisturePct map[string]*float64 `json:"soilMoisturePct"`
	Today           *types.DailyRecord  `json:"today,omitempty"`
}

// Backfill reports what the optional history fetch contributed.
type Backfill struct {
	Enabled bool   `json:"enabled"`
	Points  int    `json:"points"`
	Error   string `json:"error,omitempty"`
}

// GDDStatus is the growing-degree-day block.
type GDDStatus struct {
	Total       float64   `json:"total"`
	BaseTempC   float64   `json:"baseTempC"`
	SeasonStart string    `json:"seasonStart"`
	RatePerDay  float64   `json:"ratePerDay"`
	Bud         Milestone `json:"bud"`
	Bloom       Milestone `json:"bloom"`
}

// Milestone combines the historical crossing of a threshold with its
// forward projection. The two are independent.
type Milestone struct {
	Threshold  float64              `json:"threshold"`
	Percent    float64              `json:"percent"`
	Remaining  float64              `json:"remaining"`
	ReachedOn  *string              `json:"reachedOn"`
	Projection phenology.Projection `json:"projection"`
}

// ChillStatus is the chill-day block.
type ChillStatus struct {
	Total     int     `json:"total"`
	Target    int     `json:"target"`
	Percent   float64 `json:"percent"`
	Window    string  `json:"window"`
	ReachedOn *string `json:"reachedOn"`
}

func (s *Service) gddStatus(records []types.DailyRecord, today time.Time) GDDStatus {
	total := 0.0
	if last, ok := phenology.Latest(records); ok {
		total = *last.CumGDD
	}
	rate := phenology.RecentRate(records)
	return GDDStatus{
		Total:       total,
		BaseTempC:   s.cfg.Indicators.BaseTempC,
		SeasonStart: s.cfg.Indicators.GDDStart.String(),
		RatePerDay:  rate,
		Bud:         milestone(records, total, s.cfg.BudGDD, rate, today),
		Bloom:       milestone(records, total, s.cfg.BloomGDD, rate, today),
	}
}

func milestone(records []types.DailyRecord, total, threshold, rate float64, today time.Time) Milestone {
	p := phenology.Project(total, threshold, rate, today)
	m := Milestone{
		Threshold:  threshold,
		Percent:    p.Progress,
		Remaining:  p.Remaining,
		Projection: p,
	}
	if d, ok := phenology.CrossingDate(records, threshold); ok {
		m.ReachedOn = dateString(d)
	}
	return m
}

func (s *Service) chillStatus(records []types.DailyRecord) ChillStatus {
	c := ChillStatus{
		Target: s.cfg.ChillTargetDays,
		Window: s.cfg.Indicators.ChillStart.String() + "/" + s.cfg.Indicators.ChillEnd.String(),
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].CumChill != nil {
			c.Total = *records[i].CumChill
			break
		}
	}
	c.Percent = phenology.Percent(float64(c.Total), float64(c.Target))
	if d, ok := phenology.ChillCrossingDate(records, c.Target); ok {
		c.ReachedOn = dateString(d)
	}
	return c
}

func dateString(t time.Time) *string {
	s := t.Format(types.DateLayout)
	return &s
}
