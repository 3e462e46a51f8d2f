package session

import (
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// Request is one simulation request. Base damage comes from BaseDamage when
// set, otherwise from the mean historical damage of Region. Nil fields take
// the service defaults.
type Request struct {
	Region           string   `json:"region,omitempty"`
	BaseDamage       *float64 `json:"base_damage,omitempty"`
	MeanTempIncrease float64  `json:"mean_temp_increase"`
	StdTempIncrease  float64  `json:"std_temp_increase"`
	Iterations       *int     `json:"iterations,omitempty"`
	Seed             *uint64  `json:"seed,omitempty"`
	TopN             *int     `json:"top_n,omitempty"`
}

// Report is the result of one simulation request.
type Report struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Region      string                  `json:"region,omitempty"`
	Unit        string                  `json:"unit"`
	Params      domain.SimulationParams `json:"params"`
	Warnings    []domain.Warning        `json:"warnings"`
	Summary     domain.SampleSummary    `json:"summary"`
	Sample      domain.DamageSample     `json:"sample"`
	TopRegions  domain.RegionRanking    `json:"top_regions"`
}

// Baseline is the resolved base damage of a region.
type Baseline struct {
	Region     string           `json:"region"`
	BaseDamage float64          `json:"base_damage"`
	Unit       string           `json:"unit"`
	Warnings   []domain.Warning `json:"warnings"`
}
