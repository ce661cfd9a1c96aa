package irrigation

import (
	"math"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
)

// Wet reference provenance.
const (
	WetFromPlateaus = "plateau"
	WetFromWindow   = "window"
)

// Response coefficient provenance.
const (
	KCalibrated = "calibrated"
	KDefault    = "default"
)

// Calibration holds the dry and wet references of one zone.
type Calibration struct {
	ThetaDry       float64 `json:"thetaDry"`
	ThetaWet       float64 `json:"thetaWet"`
	WetSource      string  `json:"wetSource"`
	PlateauSamples int     `json:"plateauSamples"`
	// Collapsed is set when the wet percentile did not exceed the dry one
	// and the wet reference was forced above it.
	Collapsed bool `json:"collapsed,omitempty"`
}

// Rel is the relative saturation of moisture between the references,
// clamped to [0, 1].
func (c Calibration) Rel(moisture float64) float64 {
	span := c.ThetaWet - c.ThetaDry
	if span <= 0 {
		return 0
	}
	return clamp((moisture-c.ThetaDry)/span, 0, 1)
}

// Trend is the recent drying or wetting rate in moisture points per hour.
type Trend struct {
	Slope6h   float64 `json:"slope6h"`
	Slope24h  float64 `json:"slope24h"`
	Points6h  int     `json:"points6h"`
	Points24h int     `json:"points24h"`
}

// Response is the estimated rise in relative saturation per millimetre applied.
type Response struct {
	K      float64 `json:"k"`
	Source string  `json:"source"`
	Events int     `json:"events"`
}

func calibrate(samples []types.SoilSample, p Params) Calibration {
	values := moistures(samples)
	c := Calibration{
		ThetaDry:  percentile(rollingMedian(values, p.RollingMedian), p.DryPercentile),
		WetSource: WetFromWindow,
	}

	settled := plateaus(samples, p)
	if len(settled) > 0 {
		c.ThetaWet = percentile(settled, p.WetPercentile)
		c.WetSource = WetFromPlateaus
		c.PlateauSamples = len(settled)
	} else {
		c.ThetaWet = percentile(values, p.WetPercentile)
	}
	if c.ThetaWet <= c.ThetaDry {
		c.ThetaWet = c.ThetaDry + p.MinWetSpan
		c.Collapsed = true
	}
	return c
}

// plateaus collects the moisture values that settled after a sharp rise.
// After every adjacent rise of at least PlateauRise, the next
// PlateauLookahead samples are fitted; when at least two exist and their
// slope is flat enough they count as wet observations.
func plateaus(samples []types.SoilSample, p Params) []float64 {
	var out []float64
	for i := 1; i < len(samples); i++ {
		if samples[i].Moisture-samples[i-1].Moisture < p.PlateauRise {
			continue
		}
		end := i + 1 + p.PlateauLookahead
		if end > len(samples) {
			end = len(samples)
		}
		after := samples[i+1 : end]
		if len(after) < 2 {
			continue
		}
		if math.Abs(slopePerHour(after)) <= p.PlateauMaxSlope {
			out = append(out, moistures(after)...)
		}
	}
	return out
}

func trend(samples []types.SoilSample, p Params) Trend {
	short := trailing(samples, p.ShortTrend)
	long := trailing(samples, p.LongTrend)
	return Trend{
		Slope6h:   slopePerHour(short),
		Slope24h:  slopePerHour(long),
		Points6h:  len(short),
		Points24h: len(long),
	}
}

// response estimates k from observed irrigation events: adjacent rises
// sharper than EventRise no more than EventMaxGap apart. Each event gives
// k = Δrel / (rate × Δhours); the median is clamped to [KMin, KMax].
func response(samples []types.SoilSample, c Calibration, cfg Config) Response {
	p := cfg.Params
	var ks []float64
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap > p.EventMaxGap {
			continue
		}
		if cur.Moisture-prev.Moisture <= p.EventRise {
			continue
		}
		depth := cfg.RateMMPerHour * gap.Hours()
		if depth <= 0 {
			continue
		}
		ks = append(ks, (c.Rel(cur.Moisture)-c.Rel(prev.Moisture))/depth)
	}
	if len(ks) == 0 {
		return Response{K: clamp(cfg.DefaultK, p.KMin, p.KMax), Source: KDefault}
	}
	return Response{K: clamp(median(ks), p.KMin, p.KMax), Source: KCalibrated, Events: len(ks)}
}

// windowStart is the oldest timestamp that still counts for calibration.
func windowStart(now time.Time, p Params) time.Time {
	return now.Add(-p.Window)
}
