package domain

import (
	"time"
)

// DisasterRecord is one row of the disaster table.
type DisasterRecord struct {
	Year         int     `json:"year" db:"year"`
	Region       string  `json:"region" db:"region"`
	DamageAmount float64 `json:"damage_amount" db:"damage_amount"` // hundred million KRW
	Deaths       int     `json:"deaths" db:"deaths"`
}

// WeatherRecord is one row of the wide weather table: the temperature reading
// of every region on a single date.
type WeatherRecord struct {
	Date         time.Time          `json:"date"`
	Temperatures map[string]float64 `json:"temperatures"`
}

// WeatherTable holds the weather rows along with the region columns in their
// source order.
type WeatherTable struct {
	Regions []string        `json:"regions"`
	Records []WeatherRecord `json:"records"`
}

// SeriesPoint is a single dated observation of one region.
type SeriesPoint struct {
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
}

// DamageSample is the ordered output of one simulation run.
type DamageSample []float64

// RegionDamage is one ranking entry.
type RegionDamage struct {
	Region string  `json:"region"`
	Damage float64 `json:"damage"`
}

// RegionRanking lists regions by summed damage, highest first.
type RegionRanking []RegionDamage

// RegionShare is a ranking entry expressed as a fraction of the ranking total.
type RegionShare struct {
	Region string  `json:"region"`
	Share  float64 `json:"share"`
}

// RegionStat aggregates every record of one region.
type RegionStat struct {
	Region      string  `json:"region"`
	TotalDamage float64 `json:"total_damage"`
	MeanDamage  float64 `json:"mean_damage"`
	Deaths      int     `json:"deaths"`
	Records     int     `json:"records"`
	FirstYear   int     `json:"first_year"`
	LastYear    int     `json:"last_year"`
}
