// Package irrigation calibrates soil-moisture probes from their own history
// and turns the current reading into a watering recommendation.
//
// Everything is recomputed from the persisted sample log on every run; no
// state survives between runs other than the log itself.
package irrigation

import (
	"errors"
	"time"
)

// Params are the empirically chosen constants of the calibration. They are
// the values most likely to need site-specific tuning.
type Params struct {
	Window        time.Duration // trailing history used for calibration
	MinSamples    int           // below this the zone reports insufficient history
	RollingMedian int           // samples per rolling median before the dry percentile
	DryPercentile float64
	WetPercentile float64
	MinWetSpan    float64 // wet is forced to dry+MinWetSpan when the range collapses

	PlateauRise      float64 // points between adjacent samples that start a plateau check
	PlateauLookahead int     // samples examined after the rise
	PlateauMaxSlope  float64 // points/hour; flatter than this counts as settled

	EventRise   float64       // points; a sharper adjacent rise is treated as irrigation
	EventMaxGap time.Duration // longest gap between the two samples of an event
	KMin        float64
	KMax        float64

	ShortTrend time.Duration
	LongTrend  time.Duration

	MaxMinutes       float64
	CycleDeficit     float64 // deficit above which a drying trend splits the dose
	HeatC            float64 // inside temperature that splits the dose
	OvershootRel     float64 // predicted saturation that, with a long dose, splits it
	OvershootMinutes float64
	CycleGap         time.Duration
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Window:        30 * 24 * time.Hour,
		MinSamples:    1,
		RollingMedian: 3,
		DryPercentile: 5,
		WetPercentile: 95,
		MinWetSpan:    1.0,

		PlateauRise:      1.5,
		PlateauLookahead: 3,
		PlateauMaxSlope:  0.2,

		EventRise:   1.5,
		EventMaxGap: 3 * time.Hour,
		KMin:        0.005,
		KMax:        0.3,

		ShortTrend: 6 * time.Hour,
		LongTrend:  24 * time.Hour,

		MaxMinutes:       120,
		CycleDeficit:     0.10,
		HeatC:            28,
		OvershootRel:     0.90,
		OvershootMinutes: 25,
		CycleGap:         90 * time.Minute,
	}
}

// Config is what a run needs besides the sample history.
type Config struct {
	RateMMPerHour float64 // application rate assumed for every zone
	TargetRel     float64 // relative saturation to water up to
	DefaultK      float64 // response coefficient used until events are observed
	Params        Params
}

// Validate rejects configurations the model cannot divide by.
func (c Config) Validate() error {
	if c.RateMMPerHour <= 0 {
		return errors.New("irrigation rate must be positive")
	}
	if c.TargetRel <= 0 || c.TargetRel > 1 {
		return errors.New("irrigation target must be in (0, 1]")
	}
	if c.DefaultK <= 0 {
		return errors.New("default response coefficient must be positive")
	}
	p := c.Params
	if p.Window <= 0 || p.RollingMedian < 1 || p.PlateauLookahead < 1 {
		return errors.New("irrigation window, rolling median and lookahead must be positive")
	}
	if p.KMin <= 0 || p.KMax < p.KMin {
		return errors.New("response coefficient bounds must satisfy 0 < min <= max")
	}
	return nil
}
