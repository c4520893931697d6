// Tank geometry, limits and per-tick snapshots
package tank

import "math"

// Default limits in centimeters.
const (
	DefaultMaxWaterLevel   = 200.0
	DefaultMaxHoleDiameter = 20.0
	DefaultMaxTankWidth    = 300.0
)

// TankSpec describes the geometry of one simulation request. All lengths are
// in centimeters.
type TankSpec struct {
	WaterLevel   float64 `json:"water_level"`
	HoleHeight   float64 `json:"hole_height"`
	HoleDiameter float64 `json:"hole_diameter"`
	TankWidth    float64 `json:"tank_width"`
}

// Limits bounds the accepted geometry. It is also echoed to observers in the
// init message.
type Limits struct {
	MaxWaterLevel   float64 `json:"max_water_level" yaml:"max_water_level"`
	MaxHoleDiameter float64 `json:"max_hole_diameter" yaml:"max_hole_diameter"`
	MaxTankWidth    float64 `json:"max_tank_width" yaml:"max_tank_width"`
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		MaxWaterLevel:   DefaultMaxWaterLevel,
		MaxHoleDiameter: DefaultMaxHoleDiameter,
		MaxTankWidth:    DefaultMaxTankWidth,
	}
}

// Snapshot is the observable state after one tick.
type Snapshot struct {
	ElapsedTime    float64 // seconds
	WaterLevelCm   float64
	FlowDistanceCm float64
	FlowRateLps    float64
}

// TankHeight is the display height of the tank walls.
func (s TankSpec) TankHeight() float64 {
	return s.WaterLevel * 1.2
}

// InitialJetDistance estimates where the jet lands at t=0, in centimeters.
func (s TankSpec) InitialJetDistance() float64 {
	head := s.WaterLevel - s.HoleHeight
	if head <= 0 || s.HoleHeight <= 0 {
		return 0
	}
	return 2 * math.Sqrt(s.HoleHeight*(head))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
