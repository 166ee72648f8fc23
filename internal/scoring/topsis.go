package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Technology is one ranking candidate: a name plus its raw KPI values keyed
// by KPI name. Names need not be unique.
type Technology struct {
	Name string
	KPIs map[string]float64
}

// RankedResult is one technology's TOPSIS outcome.
type RankedResult struct {
	Name      string             `json:"name"`
	Closeness float64            `json:"closeness"`
	SPlus     float64            `json:"S_plus"`
	SMinus    float64            `json:"S_minus"`
	Weighted  map[string]float64 `json:"weighted_kpis,omitempty"`
}

// Ranking is the full output of an evaluation, including the batch-relative
// ideal vectors the distances were measured against.
type Ranking struct {
	Profile    Profile            `json:"profile"`
	Results    []RankedResult     `json:"ranking"`
	IdealBest  map[string]float64 `json:"ideal_best,omitempty"`
	IdealWorst map[string]float64 `json:"ideal_worst,omitempty"`
}

// Rank orders technologies by TOPSIS closeness, best first.
func Rank(techs []Technology, bounds map[string]Bounds, profile Profile) ([]RankedResult, error) {
	r, err := Evaluate(techs, bounds, profile)
	if err != nil {
		return nil, err
	}
	return r.Results, nil
}

// Evaluate validates the whole batch, then scores every technology. Either all
// technologies are scored or a single *InputError is returned.
func Evaluate(techs []Technology, bounds map[string]Bounds, profile Profile) (*Ranking, error) {
	if _, err := ParseProfile(string(profile)); err != nil {
		return nil, err
	}
	kpis := AllKPIs()
	if err := validateBounds(kpis, bounds); err != nil {
		return nil, err
	}
	for _, t := range techs {
		if err := validateValues(kpis, t.Name, t.KPIs); err != nil {
			return nil, err
		}
	}

	ranking := &Ranking{Profile: profile, Results: []RankedResult{}}
	if len(techs) == 0 {
		return ranking, nil
	}

	weights := make(map[Pillar]float64, len(schema))
	for _, d := range schema {
		w, err := PillarWeight(d.pillar, profile)
		if err != nil {
			return nil, err
		}
		weights[d.pillar] = w
	}

	vectors := make([][]float64, len(techs))
	for i, t := range techs {
		vectors[i] = weightedVector(t, weights, bounds, profile)
	}

	dims := len(kpis)
	best := make([]float64, dims)
	worst := make([]float64, dims)
	copy(best, vectors[0])
	copy(worst, vectors[0])
	for _, v := range vectors[1:] {
		for k := 0; k < dims; k++ {
			best[k] = math.Max(best[k], v[k])
			worst[k] = math.Min(worst[k], v[k])
		}
	}

	for i, t := range techs {
		sPlus := distance(vectors[i], best)
		sMinus := distance(vectors[i], worst)
		if !finite(sPlus) || !finite(sMinus) {
			return nil, fmt.Errorf("%w: non-finite distance for technology %q", ErrUnexpected, t.Name)
		}
		closeness := 0.0
		if denom := sPlus + sMinus; denom != 0 {
			closeness = sMinus / denom
		}
		ranking.Results = append(ranking.Results, RankedResult{
			Name:      t.Name,
			Closeness: closeness,
			SPlus:     sPlus,
			SMinus:    sMinus,
			Weighted:  byName(kpis, vectors[i]),
		})
	}

	sort.SliceStable(ranking.Results, func(i, j int) bool {
		return ranking.Results[i].Closeness > ranking.Results[j].Closeness
	})
	ranking.IdealBest = byName(kpis, best)
	ranking.IdealWorst = byName(kpis, worst)
	return ranking, nil
}

// weightedVector concatenates the weighted KPI scores of every pillar in
// schema order.
func weightedVector(t Technology, weights map[Pillar]float64, bounds map[string]Bounds, profile Profile) []float64 {
	var v []float64
	for _, d := range schema {
		res := scorePillar(d, weights[d.pillar], t.KPIs, bounds, profile)
		for _, k := range res.KPIs {
			v = append(v, k.Weighted)
		}
	}
	return v
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func byName(kpis []KPI, v []float64) map[string]float64 {
	out := make(map[string]float64, len(kpis))
	for i, k := range kpis {
		out[k.Name] = v[i]
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
