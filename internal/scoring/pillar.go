package scoring

// KPIScore is one KPI's contribution within a pillar.
type KPIScore struct {
	Name       string  `json:"name"`
	Normalized float64 `json:"normalized"`
	Weighted   float64 `json:"weighted"`
}

// PillarResult is the score of a single pillar for one set of KPI values.
type PillarResult struct {
	Pillar    Pillar     `json:"pillar"`
	Profile   Profile    `json:"profile"`
	KPIWeight float64    `json:"kpi_weight"`
	KPIs      []KPIScore `json:"kpis"`
}

// ScorePillar normalizes and weights the KPIs of one pillar. values and bounds
// are keyed by full KPI name ("envelope_kpi"). The ranking engine builds its
// vectors through the same code path.
func ScorePillar(p Pillar, values map[string]float64, bounds map[string]Bounds, profile Profile) (*PillarResult, error) {
	if _, err := ParseProfile(string(profile)); err != nil {
		return nil, err
	}
	d, ok := lookupPillar(p)
	if !ok {
		return nil, &InputError{Kind: ErrUnknownPillar, Pillar: string(p)}
	}
	if err := validateBounds(d.kpis, bounds); err != nil {
		return nil, err
	}
	if err := validateValues(d.kpis, "", values); err != nil {
		return nil, err
	}
	w, err := PillarWeight(p, profile)
	if err != nil {
		return nil, err
	}
	return scorePillar(d, w, values, bounds, profile), nil
}

// scorePillar does the arithmetic once inputs are known to be complete and valid.
func scorePillar(d pillarDef, weight float64, values map[string]float64, bounds map[string]Bounds, profile Profile) *PillarResult {
	res := &PillarResult{
		Pillar:    d.pillar,
		Profile:   profile,
		KPIWeight: weight,
		KPIs:      make([]KPIScore, len(d.kpis)),
	}
	for i, k := range d.kpis {
		n := normalize(values[k.Name], bounds[k.Name], k.Orientation)
		res.KPIs[i] = KPIScore{Name: k.Name, Normalized: n, Weighted: n * weight}
	}
	return res
}

func validateBounds(kpis []KPI, bounds map[string]Bounds) error {
	for _, k := range kpis {
		b, ok := bounds[k.Name]
		if !ok {
			return &InputError{Kind: ErrMissingBounds, KPI: k.Name}
		}
		if !b.Valid() {
			return &InputError{Kind: ErrInvalidBounds, KPI: k.Name, Min: b.Min, Max: b.Max}
		}
	}
	return nil
}

func validateValues(kpis []KPI, technology string, values map[string]float64) error {
	for _, k := range kpis {
		if _, ok := values[k.Name]; !ok {
			return &InputError{Kind: ErrMissingKPI, KPI: k.Name, Technology: technology}
		}
	}
	return nil
}
