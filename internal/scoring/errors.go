package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every validation failure returned by this package is an
// *InputError whose Kind is one of these, so callers can use errors.Is.
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidBounds  = errors.New("invalid bounds")
	ErrMissingBounds  = errors.New("missing bounds")
	ErrMissingKPI     = errors.New("missing kpi")
	ErrUnknownPillar  = errors.New("unknown pillar")

	// ErrUnexpected marks a numeric failure that validation should have made
	// impossible. It signals a defect rather than bad input.
	ErrUnexpected = errors.New("unexpected scoring failure")
)

// InputError identifies the field that made a scoring request unprocessable.
type InputError struct {
	Kind       error   `json:"-"`
	Profile    string  `json:"profile,omitempty"`
	Pillar     string  `json:"pillar,omitempty"`
	KPI        string  `json:"kpi,omitempty"`
	Technology string  `json:"technology,omitempty"`
	Min        float64 `json:"min,omitempty"`
	Max        float64 `json:"max,omitempty"`
}

func (e *InputError) Error() string {
	switch e.Kind {
	case ErrInvalidProfile:
		return fmt.Sprintf("invalid profile %q: must be one of %v", e.Profile, ProfileNames())
	case ErrUnknownPillar:
		return fmt.Sprintf("unknown pillar %q", e.Pillar)
	case ErrMissingBounds:
		return fmt.Sprintf("mins_maxes missing %q", e.KPI)
	case ErrInvalidBounds:
		return fmt.Sprintf("invalid min/max for %q: max must be > min (got %g, %g)", e.KPI, e.Min, e.Max)
	case ErrMissingKPI:
		if e.Technology == "" {
			return fmt.Sprintf("missing key %q", e.KPI)
		}
		return fmt.Sprintf("technology %q missing key %q", e.Technology, e.KPI)
	default:
		return fmt.Sprintf("scoring input error: %v", e.Kind)
	}
}

func (e *InputError) Unwrap() error { return e.Kind }

// KindName returns a stable identifier for the error kind, suitable for API
// responses and metric labels.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidProfile):
		return "invalid_profile"
	case errors.Is(err, ErrInvalidBounds):
		return "invalid_bounds"
	case errors.Is(err, ErrMissingBounds):
		return "missing_bounds"
	case errors.Is(err, ErrMissingKPI):
		return "missing_kpi"
	case errors.Is(err, ErrUnknownPillar):
		return "unknown_pillar"
	default:
		return "unexpected"
	}
}
