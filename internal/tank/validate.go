package tank

import (
	"fmt"
	"math"
)

// ValidationError reports a TankSpec field that violates a constraint.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Constraint)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Constraint: fmt.Sprintf(format, args...)}
}

// Validate checks spec against limits. Fields are checked in request order so
// the first violation reported matches what a client filled in first.
func (s TankSpec) Validate(l Limits) error {
	if err := checkLength("water_level", "Water level", s.WaterLevel, l.MaxWaterLevel); err != nil {
		return err
	}
	if err := checkLength("hole_height", "Hole height", s.HoleHeight, 0); err != nil {
		return err
	}
	if s.HoleHeight > s.WaterLevel {
		return invalid("hole_height", "Hole height cannot be greater than water level")
	}
	if err := checkLength("hole_diameter", "Hole diameter", s.HoleDiameter, l.MaxHoleDiameter); err != nil {
		return err
	}
	return checkLength("tank_width", "Tank width", s.TankWidth, l.MaxTankWidth)
}

// checkLength enforces 0 < v <= max. A max of zero disables the upper bound.
func checkLength(field, label string, v, max float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "%s must be a finite number", label)
	}
	if v <= 0 {
		return invalid(field, "%s must be positive", label)
	}
	if max > 0 && v > max {
		return invalid(field, "%s cannot exceed %g cm", label, max)
	}
	return nil
}

// Validate checks that every limit is a positive finite number.
func (l Limits) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"max_water_level", l.MaxWaterLevel},
		{"max_hole_diameter", l.MaxHoleDiameter},
		{"max_tank_width", l.MaxTankWidth},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return fmt.Errorf("limit %s must be a positive number, got %v", f.name, f.v)
		}
	}
	return nil
}
