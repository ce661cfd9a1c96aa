// Package extract pulls the values a run needs out of station API payloads.
//
// The payload shape varies between firmware and API versions, so each step
// is an ordered list of named strategies and the first that matches wins.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/units"
)

// Field names inside a channel object.
const (
	TemperatureField = "temperature"
	MoistureField    = "soilmoisture"
)

// ErrNoDeviceData is returned when no strategy locates the device data.
var ErrNoDeviceData = errors.New("payload has no device data")

// APIError is a failure reported inside a successful HTTP response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("station api error: code=%d msg=%q", e.Code, e.Message)
}

// Layout maps station channels to zones.
type Layout struct {
	ZoneChannels    map[string]string   // zone -> temperature channel
	OutdoorChannel  string              // empty when there is no outdoor sensor
	SoilProbes      map[string][]string // zone -> moisture channels
	SoilTempChannel string
}

// Probes returns every moisture channel of the layout.
func (l Layout) Probes() []string {
	var out []string
	for _, chs := range l.SoilProbes {
		out = append(out, chs...)
	}
	return out
}

type locator struct {
	name string
	find func(data map[string]any) (map[string]any, bool)
}

// locators find the object holding the channels.
var locators = []locator{
	{name: "device_list", find: deviceList},
	{name: "flat", find: flatData},
}

type lookup struct {
	name string
	find func(data map[string]any, channel, field string) (any, bool)
}

// lookups find one field of one channel.
var lookups = []lookup{
	{name: "nested", find: nestedField},
	{name: "dotted", find: dottedField},
	{name: "direct", find: directValue},
}

// Decode parses a payload into a generic object, keeping numbers exact.
func Decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if out == nil {
		return nil, errors.New("decode payload: not a JSON object")
	}
	return out, nil
}

// Envelope checks the API status code. A missing code is accepted.
func Envelope(doc map[string]any) error {
	raw, ok := doc["code"]
	if !ok {
		return nil
	}
	r, ok := units.Parse(raw)
	if !ok {
		return &APIError{Code: -1, Message: fmt.Sprint(raw)}
	}
	if r.Value != 0 {
		msg, _ := doc["msg"].(string)
		return &APIError{Code: int(r.Value), Message: msg}
	}
	return nil
}

// DeviceData returns the object holding the channels and the name of the
// strategy that found it.
func DeviceData(doc map[string]any) (map[string]any, string, error) {
	if err := Envelope(doc); err != nil {
		return nil, "", err
	}
	for _, l := range locators {
		if data, ok := l.find(doc); ok {
			return data, l.name, nil
		}
	}
	return nil, "", ErrNoDeviceData
}

// Field returns the raw value of channel.field and the strategy that found it.
func Field(data map[string]any, channel, field string) (any, string, bool) {
	if channel == "" {
		return nil, "", false
	}
	for _, l := range lookups {
		if v, ok := l.find(data, channel, field); ok {
			return v, l.name, true
		}
	}
	return nil, "", false
}

// Temperature reads a channel in Celsius.
func Temperature(data map[string]any, channel string) *float64 {
	raw, _, ok := Field(data, channel, TemperatureField)
	if !ok {
		return nil
	}
	c, ok := units.ToCelsius(raw, "")
	if !ok {
		return nil
	}
	return &c
}

// Moisture reads a soil moisture channel in percent.
func Moisture(data map[string]any, channel string) *float64 {
	raw, _, ok := Field(data, channel, MoistureField)
	if !ok {
		return nil
	}
	r, ok := units.Parse(raw)
	if !ok {
		return nil
	}
	return &r.Value
}

// Current extracts the observation of a real-time payload. The observation
// time is the payload's epoch "time" when present, otherwise now.
func Current(payload []byte, layout Layout, now time.Time) (types.Observation, error) {
	doc, err := Decode(payload)
	if err != nil {
		return types.Observation{}, err
	}
	data, _, err := DeviceData(doc)
	if err != nil {
		return types.Observation{}, err
	}

	obs := types.Observation{
		Timestamp:    observedAt(doc, now),
		Temperatures: make(map[string]*float64, len(layout.ZoneChannels)),
		SoilMoisture: map[string]*float64{},
	}
	for zone, ch := range layout.ZoneChannels {
		obs.Temperatures[zone] = Temperature(data, ch)
	}
	if layout.OutdoorChannel != "" {
		obs.OutdoorC = Temperature(data, layout.OutdoorChannel)
	}
	if layout.SoilTempChannel != "" {
		obs.SoilC = Temperature(data, layout.SoilTempChannel)
	}
	for _, ch := range layout.Probes() {
		obs.SoilMoisture[ch] = Moisture(data, ch)
	}
	return obs, nil
}

func observedAt(doc map[string]any, now time.Time) time.Time {
	r, ok := units.Parse(doc["time"])
	if !ok || r.Value <= 0 {
		return now
	}
	return time.Unix(int64(r.Value), 0).In(now.Location())
}

func deviceList(doc map[string]any) (map[string]any, bool) {
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	devices, ok := data["device"].([]any)
	if !ok || len(devices) == 0 {
		return nil, false
	}
	first, ok := devices[0].(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := first["data"].(map[string]any)
	return inner, ok
}

func flatData(doc map[string]any) (map[string]any, bool) {
	data, ok := doc["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func nestedField(data map[string]any, channel, field string) (any, bool) {
	obj, ok := data[channel].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok && v != nil
}

func dottedField(data map[string]any, channel, field string) (any, bool) {
	v, ok := data[channel+"."+field]
	return v, ok && v != nil
}

// directValue accepts a channel that is itself the value, either a scalar or
// a {value, unit} object.
func directValue(data map[string]any, channel, _ string) (any, bool) {
	v, ok := data[channel]
	if !ok || v == nil {
		return nil, false
	}
	if obj, isObj := v.(map[string]any); isObj {
		_, hasValue := obj["value"]
		return v, hasValue
	}
	return v, true
}
