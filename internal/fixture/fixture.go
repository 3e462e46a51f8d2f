// Package fixture generates the deterministic in-memory tables used when no
// real data source is configured, and by tests and the fixtures command.
package fixture

import (
	"context"
	"math"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// DefaultRegions are the region columns of the generated weather table.
var DefaultRegions = []string{"RegionA", "RegionB", "RegionC"}

// Disasters returns the reference disaster table.
func Disasters() []domain.DisasterRecord {
	return []domain.DisasterRecord{
		{Year: 2020, Region: "RegionA", DamageAmount: 1.5, Deaths: 2},
		{Year: 2021, Region: "RegionB", DamageAmount: 0.8, Deaths: 0},
		{Year: 2022, Region: "RegionC", DamageAmount: 2.1, Deaths: 1},
		{Year: 2022, Region: "RegionA", DamageAmount: 1.2, Deaths: 0},
	}
}

// WeatherConfig controls weather generation.
type WeatherConfig struct {
	Regions []string
	Start   time.Time
	Days    int
	Seed    int64
}

// DefaultWeatherConfig covers calendar year 2022 for the default regions.
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		Regions: DefaultRegions,
		Start:   time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		Days:    365,
		Seed:    42,
	}
}

// Weather builds a daily temperature table: an annual cycle, a per-region
// offset and OpenSimplex noise so neighbouring days stay correlated. Output
// depends only on cfg.
func Weather(cfg WeatherConfig) domain.WeatherTable {
	noise := opensimplex.NewNormalized(cfg.Seed)

	table := domain.WeatherTable{
		Regions: append([]string(nil), cfg.Regions...),
		Records: make([]domain.WeatherRecord, 0, max(cfg.Days, 0)),
	}
	for d := 0; d < cfg.Days; d++ {
		date := cfg.Start.AddDate(0, 0, d)
		temps := make(map[string]float64, len(cfg.Regions))
		for i, region := range cfg.Regions {
			temps[region] = round1(dailyTemperature(noise, date, i))
		}
		table.Records = append(table.Records, domain.WeatherRecord{Date: date, Temperatures: temps})
	}
	return table
}

func dailyTemperature(noise opensimplex.Noise, date time.Time, regionIdx int) float64 {
	doy := float64(date.YearDay())
	seasonal := 12 - 12*math.Cos(2*math.Pi*(doy-15)/365)
	offset := 1.5 * float64(regionIdx)
	jitter := (octaveNoise(noise, doy/20, float64(regionIdx)*10, 3) - 0.5) * 8
	return seasonal + offset + jitter
}

// octaveNoise layers three frequencies of normalized noise; result stays in [0, 1).
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int) float64 {
	total, amplitude, maxVal, frequency := 0.0, 1.0, 0.0, 1.0
	for range octaves {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return total / maxVal
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Provider serves the generated tables. It is the in-memory variant of
// domain.DataProvider.
type Provider struct {
	weather   domain.WeatherTable
	disasters []domain.DisasterRecord
}

// NewProvider generates the tables once from cfg.
func NewProvider(cfg WeatherConfig) *Provider {
	return &Provider{
		weather:   Weather(cfg),
		disasters: Disasters(),
	}
}

// NewStaticProvider serves the given tables as-is.
func NewStaticProvider(weather domain.WeatherTable, disasters []domain.DisasterRecord) *Provider {
	return &Provider{weather: weather, disasters: disasters}
}

// Weather returns the weather table. Rows share their temperature maps with
// the provider and must be treated as read-only.
func (p *Provider) Weather(ctx context.Context) (domain.WeatherTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherTable{}, err
	}
	return p.weather.Between(time.Time{}, time.Time{}), nil
}

// Disasters returns a copy of the records.
func (p *Provider) Disasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.DisasterRecord(nil), p.disasters...), nil
}
