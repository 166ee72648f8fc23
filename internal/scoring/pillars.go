package scoring

import "strings"

// Pillar is one of the five thematic KPI groupings.
type Pillar string

const (
	EnergyEfficiency              Pillar = "ee"
	FinancialViability            Pillar = "fv"
	RenewableEnergyIntegration    Pillar = "rei"
	StructuralEnvironmentalImpact Pillar = "sei"
	UserComfort                   Pillar = "uc"
)

// Profile selects the stakeholder priorities used to weight the pillars.
type Profile string

const (
	EnvironmentOriented Profile = "Environment-Oriented"
	ComfortOriented     Profile = "Comfort-Oriented"
	FinanciallyOriented Profile = "Financially-Oriented"
)

// KPI describes one measured attribute of a technology.
type KPI struct {
	Name        string      `json:"name"`
	Pillar      Pillar      `json:"pillar"`
	Orientation Orientation `json:"-"`
}

// Base is the KPI name without the "_kpi" suffix, used as the key in
// single-pillar requests ("envelope_min") and explain output.
func (k KPI) Base() string {
	return strings.TrimSuffix(k.Name, "_kpi")
}

type pillarDef struct {
	pillar Pillar
	title  string
	kpis   []KPI
}

// schema lists every pillar and its KPIs in their canonical order. The order
// defines the dimensions of the TOPSIS vectors.
var schema = []pillarDef{
	{EnergyEfficiency, "Energy Efficiency", []KPI{
		{"envelope_kpi", EnergyEfficiency, LowerIsBetter},
		{"window_kpi", EnergyEfficiency, LowerIsBetter},
		{"heating_system_kpi", EnergyEfficiency, LowerIsBetter},
		{"cooling_system_kpi", EnergyEfficiency, LowerIsBetter},
	}},
	{FinancialViability, "Financial Viability", []KPI{
		{"ii_kpi", FinancialViability, LowerIsBetter},
		{"aoc_kpi", FinancialViability, LowerIsBetter},
		{"irr_kpi", FinancialViability, HigherIsBetter},
		{"npv_kpi", FinancialViability, HigherIsBetter},
		{"pp_kpi", FinancialViability, LowerIsBetter},
		{"arv_kpi", FinancialViability, HigherIsBetter},
	}},
	{RenewableEnergyIntegration, "Renewable Energy Integration", []KPI{
		{"st_coverage_kpi", RenewableEnergyIntegration, HigherIsBetter},
		{"onsite_res_kpi", RenewableEnergyIntegration, HigherIsBetter},
		{"net_energy_export_kpi", RenewableEnergyIntegration, HigherIsBetter},
	}},
	{StructuralEnvironmentalImpact, "Structural & Environmental Impact", []KPI{
		{"embodied_carbon_kpi", StructuralEnvironmentalImpact, LowerIsBetter},
		{"gwp_kpi", StructuralEnvironmentalImpact, LowerIsBetter},
	}},
	{UserComfort, "User Comfort", []KPI{
		{"thermal_comfort_air_temp_kpi", UserComfort, HigherIsBetter},
		{"thermal_comfort_humidity_kpi", UserComfort, HigherIsBetter},
	}},
}

var profiles = []Profile{EnvironmentOriented, ComfortOriented, FinanciallyOriented}

// ParseProfile accepts exactly one of the three profile names.
func ParseProfile(s string) (Profile, error) {
	for _, p := range profiles {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &InputError{Kind: ErrInvalidProfile, Profile: s}
}

// ProfileNames returns the accepted profile strings.
func ProfileNames() []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = string(p)
	}
	return out
}

// ParsePillar accepts a pillar code such as "ee".
func ParsePillar(s string) (Pillar, error) {
	if _, ok := lookupPillar(Pillar(s)); ok {
		return Pillar(s), nil
	}
	return "", &InputError{Kind: ErrUnknownPillar, Pillar: s}
}

// Pillars returns the pillar codes in canonical order.
func Pillars() []Pillar {
	out := make([]Pillar, len(schema))
	for i, d := range schema {
		out[i] = d.pillar
	}
	return out
}

// Title returns the human-readable pillar name.
func (p Pillar) Title() string {
	if d, ok := lookupPillar(p); ok {
		return d.title
	}
	return string(p)
}

// PillarKPIs returns the KPIs belonging to p.
func PillarKPIs(p Pillar) []KPI {
	d, ok := lookupPillar(p)
	if !ok {
		return nil
	}
	out := make([]KPI, len(d.kpis))
	copy(out, d.kpis)
	return out
}

// AllKPIs returns all 17 KPIs in vector order.
func AllKPIs() []KPI {
	var out []KPI
	for _, d := range schema {
		out = append(out, d.kpis...)
	}
	return out
}

// KPINames returns the names of all KPIs in vector order.
func KPINames() []string {
	kpis := AllKPIs()
	out := make([]string, len(kpis))
	for i, k := range kpis {
		out[i] = k.Name
	}
	return out
}

func lookupPillar(p Pillar) (pillarDef, bool) {
	for _, d := range schema {
		if d.pillar == p {
			return d, true
		}
	}
	return pillarDef{}, false
}
