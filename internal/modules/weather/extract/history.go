package extract

import (
	"sort"
	"strconv"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/types"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/units"
)

// History converts a history payload into ordered Celsius points for
// channel.field. The API answers an empty list instead of an object when it
// has nothing for the range; that yields no points and no error.
func History(payload []byte, channel, field string) ([]types.HistoryPoint, error) {
	doc, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if err := Envelope(doc); err != nil {
		return nil, err
	}
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, _, ok := Field(data, channel, field)
	if !ok {
		return nil, nil
	}
	series, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}
	unit, _ := series["unit"].(string)
	list, ok := series["list"].(map[string]any)
	if !ok {
		return nil, nil
	}

	points := make([]types.HistoryPoint, 0, len(list))
	for epoch, v := range list {
		sec, err := strconv.ParseInt(epoch, 10, 64)
		if err != nil {
			continue
		}
		c, ok := units.ToCelsius(v, unit)
		if !ok {
			continue
		}
		points = append(points, types.HistoryPoint{Time: time.Unix(sec, 0).UTC(), Celsius: c})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}
