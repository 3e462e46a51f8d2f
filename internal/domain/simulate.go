package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultSensitivity is the fractional damage increase per °C of warming.
const DefaultSensitivity = 0.2

// seedStream is the PCG stream selector; fixed so a seed alone determines the sequence.
const seedStream = 0x9e3779b97f4a7c15

// SimulationParams describes one Monte Carlo run.
type SimulationParams struct {
	BaseDamage       float64 `json:"base_damage"`
	MeanTempIncrease float64 `json:"mean_temp_increase"`
	StdTempIncrease  float64 `json:"std_temp_increase"`
	Iterations       int     `json:"iterations"`
	Seed             *uint64 `json:"seed,omitempty"`
}

// DamageModel is the linear damage-sensitivity model
// damage = base * (1 + Sensitivity*t).
type DamageModel struct {
	Sensitivity float64
}

// NewDamageModel returns a model with the given sensitivity coefficient.
func NewDamageModel(sensitivity float64) (DamageModel, error) {
	if !IsFinite(sensitivity) || sensitivity <= 0 {
		return DamageModel{}, fmt.Errorf("%w: sensitivity must be a positive finite number, got %g", ErrInvalidParameter, sensitivity)
	}
	return DamageModel{Sensitivity: sensitivity}, nil
}

// Simulate runs the default model.
func Simulate(p SimulationParams) (DamageSample, error) {
	return DamageModel{Sensitivity: DefaultSensitivity}.Simulate(p)
}

// Simulate draws p.Iterations warming samples from Normal(mean, std) and maps
// each through the model. A non-positive iteration count yields an empty
// sample. With a seed the output is reproducible; without one every call
// draws a fresh seed. Parameters whose projected damages overflow float64
// are rejected.
func (m DamageModel) Simulate(p SimulationParams) (DamageSample, error) {
	if err := m.validate(p); err != nil {
		return nil, err
	}
	if p.Iterations <= 0 {
		return DamageSample{}, nil
	}

	seed := rand.Uint64()
	if p.Seed != nil {
		seed = *p.Seed
	}
	rng := rand.New(rand.NewPCG(seed, seedStream))

	sample := make(DamageSample, p.Iterations)
	var total float64
	for i := range sample {
		t := p.MeanTempIncrease + p.StdTempIncrease*rng.NormFloat64()
		sample[i] = m.Damage(p.BaseDamage, t)
		total += math.Abs(sample[i])
		if !IsFinite(total) {
			return nil, fmt.Errorf("%w: projected damage overflows at iteration %d", ErrInvalidParameter, i)
		}
	}
	return sample, nil
}

// Damage applies the model to a single warming value.
func (m DamageModel) Damage(base, tempIncrease float64) float64 {
	return base * (1 + m.Sensitivity*tempIncrease)
}

func (m DamageModel) validate(p SimulationParams) error {
	if !IsFinite(m.Sensitivity) || m.Sensitivity <= 0 {
		return fmt.Errorf("%w: sensitivity must be a positive finite number, got %g", ErrInvalidParameter, m.Sensitivity)
	}
	if !IsFinite(p.BaseDamage) {
		return fmt.Errorf("%w: base damage must be finite", ErrInvalidParameter)
	}
	if !IsFinite(p.MeanTempIncrease) {
		return fmt.Errorf("%w: mean temperature increase must be finite", ErrInvalidParameter)
	}
	if !IsFinite(p.StdTempIncrease) || p.StdTempIncrease < 0 {
		return fmt.Errorf("%w: standard deviation must be a non-negative finite number, got %g", ErrInvalidParameter, p.StdTempIncrease)
	}
	return nil
}

// ValidateBaseDamage flags baselines that should not drive decisions.
func ValidateBaseDamage(region string, base float64) []Warning {
	if base >= 0 {
		return nil
	}
	return []Warning{{
		Kind:    WarningNegativeBaseline,
		Region:  region,
		Message: fmt.Sprintf("base damage %g is negative", base),
	}}
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
