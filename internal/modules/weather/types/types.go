package types

import "time"

// DateLayout is the calendar-date format used for keys and persisted rows.
const DateLayout = "2006-01-02"

// DailyRecord is one calendar day of the temperature series. Min and Max are
// widened by readings; every other field is derived on replay. Nil means the
// value is unavailable.
type DailyRecord struct {
	Date     time.Time `json:"date"`
	Min      *float64  `json:"tmin"`
	Max      *float64  `json:"tmax"`
	Mean     *float64  `json:"tmean"`
	GDD      *float64  `json:"gdd"`
	CumGDD   *float64  `json:"cumGdd"`
	Chill    *int      `json:"chill"`
	CumChill *int      `json:"cumChill"`
}

// SoilSample is one representative moisture reading for a zone.
type SoilSample struct {
	Timestamp time.Time `json:"timestamp"`
	Zone      string    `json:"zone"`
	Moisture  float64   `json:"moisturePct"`
	InsideC   *float64  `json:"insideC,omitempty"`
	OutsideC  *float64  `json:"outsideC,omitempty"`
	SoilC     *float64  `json:"soilC,omitempty"`
}

// Observation is the current reading of one run, already in Celsius and
// percent. Temperatures are keyed by zone, SoilMoisture by probe channel.
// Nil entries are sensor channels that could not be read.
type Observation struct {
	Timestamp    time.Time           `json:"timestamp"`
	Temperatures map[string]*float64 `json:"temperaturesC"`
	OutdoorC     *float64            `json:"outdoorC,omitempty"`
	SoilC        *float64            `json:"soilC,omitempty"`
	SoilMoisture map[string]*float64 `json:"soilMoisturePct"`
}

// HistoryPoint is one backfill value for the primary temperature channel.
type HistoryPoint struct {
	Time    time.Time `json:"time"`
	Celsius float64   `json:"celsius"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
