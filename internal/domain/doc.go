// Package domain models regional weather and disaster data and the damage
// projection computed from it.
//
// # Data Source
//
// Tables come from a provider (fixture, CSV directory, remote API or SQL
// database) and are loaded wholesale at the start of a session. This package
// never touches storage; it operates on the loaded, validated tables.
//
// # Table Conventions
//
// Weather is a wide table, one row per date and one temperature column per
// region:
//
//	date,RegionA,RegionB,RegionC
//	2022-01-01,3.1,2.4,5.0
//
// Disaster records are long-form, one row per region and year:
//
//	year,region,damage_amount_hundred_million_won,deaths
//	2020,RegionA,1.5,2
//
// Damage amounts are in units of one hundred million KRW. The unit is a label
// only; nothing in the computation depends on it.
//
// # Damage Model
//
// The projection is a linear sensitivity model, not a physical simulation:
//
//	t      ~ Normal(mean, std)       projected warming in °C
//	damage = base * (1 + k * t)      k defaults to 0.2
//
// The base damage is normally the historical mean damage of a region. A region
// without records falls back to a zero baseline and the caller receives a
// [WarningMissingData] warning. Negative baselines pass through the arithmetic
// but raise [WarningNegativeBaseline].
//
// # Rankings
//
// Regions are ranked by summed damage, descending. Equal totals are ordered by
// region name so rankings are reproducible.
package domain
