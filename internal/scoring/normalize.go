package scoring

// Orientation says which end of a KPI range is desirable.
type Orientation int

const (
	HigherIsBetter Orientation = iota
	LowerIsBetter
)

func (o Orientation) String() string {
	if o == LowerIsBetter {
		return "lower_is_better"
	}
	return "higher_is_better"
}

// Bounds is the [Min, Max) range a KPI is normalized against.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether Max > Min. NaN on either side is invalid.
func (b Bounds) Valid() bool {
	return b.Max > b.Min
}

// Normalize maps value onto the 0–100 desirability scale. Values outside
// [min, max] are clamped, not rejected.
func Normalize(value, min, max float64, o Orientation) (float64, error) {
	b := Bounds{Min: min, Max: max}
	if !b.Valid() {
		return 0, &InputError{Kind: ErrInvalidBounds, Min: min, Max: max}
	}
	return normalize(value, b, o), nil
}

// normalize assumes b has already been validated.
func normalize(value float64, b Bounds, o Orientation) float64 {
	var score float64
	if o == LowerIsBetter {
		score = (b.Max - value) / (b.Max - b.Min) * 100
	} else {
		score = (value - b.Min) / (b.Max - b.Min) * 100
	}
	return clamp(score, 0, 100)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
