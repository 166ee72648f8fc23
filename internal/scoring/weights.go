package scoring

// ScoreTotal is the fixed denominator every pillar score is divided by. Each
// profile's pillar scores happen to sum to it, but the weight formula does not
// depend on that.
const ScoreTotal = 15

type scoreKey struct {
	pillar  Pillar
	profile Profile
}

// pillarScores holds the importance (0–5) of each pillar for each profile.
var pillarScores = map[scoreKey]int{
	{EnergyEfficiency, EnvironmentOriented}: 3,
	{EnergyEfficiency, ComfortOriented}:     2,
	{EnergyEfficiency, FinanciallyOriented}: 2,

	{FinancialViability, EnvironmentOriented}: 5,
	{FinancialViability, ComfortOriented}:     3,
	{FinancialViability, FinanciallyOriented}: 1,

	{RenewableEnergyIntegration, EnvironmentOriented}: 2,
	{RenewableEnergyIntegration, ComfortOriented}:     5,
	{RenewableEnergyIntegration, FinanciallyOriented}: 3,

	{StructuralEnvironmentalImpact, EnvironmentOriented}: 1,
	{StructuralEnvironmentalImpact, ComfortOriented}:     4,
	{StructuralEnvironmentalImpact, FinanciallyOriented}: 5,

	{UserComfort, EnvironmentOriented}: 4,
	{UserComfort, ComfortOriented}:     1,
	{UserComfort, FinanciallyOriented}: 4,
}

// PillarScore returns the raw table score for (pillar, profile).
func PillarScore(p Pillar, profile Profile) (int, error) {
	if _, err := ParseProfile(string(profile)); err != nil {
		return 0, err
	}
	if _, ok := lookupPillar(p); !ok {
		return 0, &InputError{Kind: ErrUnknownPillar, Pillar: string(p)}
	}
	return pillarScores[scoreKey{p, profile}], nil
}

// PillarWeight spreads the pillar's importance evenly over its KPIs:
// (score / ScoreTotal) / kpi_count.
func PillarWeight(p Pillar, profile Profile) (float64, error) {
	score, err := PillarScore(p, profile)
	if err != nil {
		return 0, err
	}
	d, _ := lookupPillar(p)
	return (float64(score) / ScoreTotal) / float64(len(d.kpis)), nil
}

// WeightSet maps each KPI name to its per-KPI weight for one profile.
type WeightSet map[string]float64

// Sum returns the total of all weights. It comes to 1 only because each
// profile's pillar scores add up to ScoreTotal in the current table.
func (w WeightSet) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// ProfileWeights returns the per-KPI weight of every KPI under profile.
func ProfileWeights(profile Profile) (WeightSet, error) {
	out := make(WeightSet, len(AllKPIs()))
	for _, d := range schema {
		w, err := PillarWeight(d.pillar, profile)
		if err != nil {
			return nil, err
		}
		for _, k := range d.kpis {
			out[k.Name] = w
		}
	}
	return out, nil
}
