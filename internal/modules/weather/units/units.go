// Package units turns loosely typed station values into Celsius readings.
package units

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Reading is a numeric value together with the unit label it arrived with.
type Reading struct {
	Value float64
	Unit  string
}

// IsFahrenheit reports whether unit carries a Fahrenheit marker: "℉", an F
// right after a degree sign ("ºF", "°F"), a bare "F", or the word fahrenheit
// in any case.
func IsFahrenheit(unit string) bool {
	u := strings.TrimSpace(unit)
	switch {
	case u == "F":
		return true
	case strings.ContainsRune(u, '℉'):
		return true
	case strings.Contains(u, "ºF"), strings.Contains(u, "°F"):
		return true
	}
	return strings.Contains(strings.ToLower(u), "fahrenheit")
}

// Celsius converts v expressed in unit to degrees Celsius. Labels without a
// Fahrenheit marker pass through unchanged.
func Celsius(v float64, unit string) float64 {
	if IsFahrenheit(unit) {
		return (v - 32) * 5 / 9
	}
	return v
}

// Parse accepts a bare number, a numeric string, a json.Number or the
// structured {"value": ..., "unit": ...} form. ok is false when no finite
// number can be recovered; a zero reading is returned with ok true.
func Parse(raw any) (Reading, bool) {
	switch t := raw.(type) {
	case map[string]any:
		v, ok := number(t["value"])
		if !ok {
			return Reading{}, false
		}
		unit, _ := t["unit"].(string)
		return Reading{Value: v, Unit: strings.TrimSpace(unit)}, true
	default:
		v, ok := number(raw)
		if !ok {
			return Reading{}, false
		}
		return Reading{Value: v}, true
	}
}

// ToCelsius parses raw and converts it. unit is used when raw has no unit of
// its own.
func ToCelsius(raw any, unit string) (float64, bool) {
	r, ok := Parse(raw)
	if !ok {
		return 0, false
	}
	if r.Unit == "" {
		r.Unit = unit
	}
	return Celsius(r.Value, r.Unit), true
}

func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
