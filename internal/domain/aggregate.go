package domain

import (
	"cmp"
	"fmt"
	"slices"
)

// TopRegions sums damage per region and returns at most topN regions, highest
// total first. Equal totals are ordered by region name.
func TopRegions(records []DisasterRecord, topN int) (RegionRanking, error) {
	if topN < 0 {
		return nil, fmt.Errorf("%w: top_n must be >= 0, got %d", ErrInvalidParameter, topN)
	}

	totals := make(map[string]float64)
	for _, r := range records {
		totals[r.Region] += r.DamageAmount
	}

	ranking := make(RegionRanking, 0, len(totals))
	for region, damage := range totals {
		ranking = append(ranking, RegionDamage{Region: region, Damage: damage})
	}
	slices.SortFunc(ranking, compareRegionDamage)

	if topN < len(ranking) {
		ranking = ranking[:topN]
	}
	return ranking, nil
}

func compareRegionDamage(a, b RegionDamage) int {
	if c := cmp.Compare(b.Damage, a.Damage); c != 0 {
		return c
	}
	return cmp.Compare(a.Region, b.Region)
}

// Total is the summed damage of all entries.
func (r RegionRanking) Total() float64 {
	var total float64
	for _, e := range r {
		total += e.Damage
	}
	return total
}

// Shares expresses each entry as a fraction of the ranking total. A zero
// total gives zero shares.
func (r RegionRanking) Shares() []RegionShare {
	total := r.Total()
	shares := make([]RegionShare, len(r))
	for i, e := range r {
		shares[i] = RegionShare{Region: e.Region}
		if total != 0 {
			shares[i].Share = e.Damage / total
		}
	}
	return shares
}

// MeanDamageForRegion returns the mean damage of the region's records, or
// false when the region has none.
func MeanDamageForRegion(records []DisasterRecord, region string) (float64, bool) {
	var sum float64
	var n int
	for _, r := range records {
		if r.Region != region {
			continue
		}
		sum += r.DamageAmount
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// BaselineForRegion resolves the simulation base damage of a region. Regions
// without records fall back to zero with a missing-data warning.
func BaselineForRegion(records []DisasterRecord, region string) (float64, []Warning) {
	mean, ok := MeanDamageForRegion(records, region)
	if !ok {
		return 0, []Warning{{
			Kind:    WarningMissingData,
			Region:  region,
			Message: fmt.Sprintf("%s: no disaster records for region %q, using zero baseline", ErrMissingData, region),
		}}
	}
	return mean, ValidateBaseDamage(region, mean)
}

// RegionStats aggregates damage, deaths and year span per region, ordered
// like a ranking.
func RegionStats(records []DisasterRecord) []RegionStat {
	byRegion := make(map[string]*RegionStat)
	for _, r := range records {
		s, ok := byRegion[r.Region]
		if !ok {
			s = &RegionStat{Region: r.Region, FirstYear: r.Year, LastYear: r.Year}
			byRegion[r.Region] = s
		}
		s.TotalDamage += r.DamageAmount
		s.Deaths += r.Deaths
		s.Records++
		s.FirstYear = min(s.FirstYear, r.Year)
		s.LastYear = max(s.LastYear, r.Year)
	}

	stats := make([]RegionStat, 0, len(byRegion))
	for _, s := range byRegion {
		s.MeanDamage = s.TotalDamage / float64(s.Records)
		stats = append(stats, *s)
	}
	slices.SortFunc(stats, func(a, b RegionStat) int {
		return compareRegionDamage(
			RegionDamage{Region: a.Region, Damage: a.TotalDamage},
			RegionDamage{Region: b.Region, Damage: b.TotalDamage},
		)
	})
	return stats
}
