package domain

import (
	"slices"
	"time"
)

// Between returns the rows dated within [start, end]. A zero bound is open.
// Region columns are kept even when no row matches.
func (t WeatherTable) Between(start, end time.Time) WeatherTable {
	out := WeatherTable{
		Regions: slices.Clone(t.Regions),
		Records: make([]WeatherRecord, 0, len(t.Records)),
	}
	for _, r := range t.Records {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out
}

// HasRegion reports whether region is one of the table's columns.
func (t WeatherTable) HasRegion(region string) bool {
	return slices.Contains(t.Regions, region)
}

// Series returns the dated readings of one region in chronological order.
// Rows without a reading for the region are skipped.
func (t WeatherTable) Series(region string) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(t.Records))
	for _, r := range t.Records {
		v, ok := r.Temperatures[region]
		if !ok {
			continue
		}
		points = append(points, SeriesPoint{Date: r.Date, Temperature: v})
	}
	slices.SortStableFunc(points, func(a, b SeriesPoint) int {
		return a.Date.Compare(b.Date)
	})
	return points
}

// MeanTemperature averages a region's readings, false when there are none.
func (t WeatherTable) MeanTemperature(region string) (float64, bool) {
	series := t.Series(region)
	if len(series) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range series {
		sum += p.Temperature
	}
	return sum / float64(len(series)), true
}
