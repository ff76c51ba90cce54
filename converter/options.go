package converter

import (
	"math"
	"slices"

	"fileflow/models"
)

// clampFraction reads a quality fraction. Out-of-range values are clamped to
// [0,1] rather than rejected; clients built against the web UI rely on it.
func clampFraction(raw models.Options, key string, def float64) (float64, error) {
	q, err := raw.Float(key, def)
	if err != nil {
		return 0, optionError(err)
	}
	if math.IsNaN(q) {
		return 0, models.NewError(models.KindValidation, "option %q must be a number", key)
	}
	return math.Max(0, math.Min(1, q)), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// intInRange reads a whole number and rejects values outside [lo, hi].
func intInRange(raw models.Options, key string, def, lo, hi int) (int, error) {
	v, err := raw.Int(key, def)
	if err != nil {
		return 0, optionError(err)
	}
	if v < lo || v > hi {
		return 0, models.NewError(models.KindValidation, "option %q must be between %d and %d, got %d", key, lo, hi, v)
	}
	return v, nil
}

// oneOf reads a string restricted to allowed values.
func oneOf(raw models.Options, key, def string, allowed ...string) (string, error) {
	v, err := raw.String(key, def)
	if err != nil {
		return "", optionError(err)
	}
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", models.NewError(models.KindValidation, "option %q must be one of %v, got %q", key, allowed, v)
}

// qualityPercent maps a validated fraction onto the 1-100 scale encoders use.
func qualityPercent(q float64) int {
	return clampInt(int(math.Round(q*100)), 1, 100)
}
