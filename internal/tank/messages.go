package tank

import (
	"encoding/json"
	"fmt"
)

// Message methods carried in the "method" field of every frame.
const (
	MethodInit = "init"
	MethodData = "data"
)

// Message is a frame pushed to observers. The set of implementations is
// closed: InitMessage and DataMessage.
type Message interface {
	Method() string
	isMessage()
}

// InitMessage announces a new simulation so observers can draw the tank
// before the first tick.
type InitMessage struct {
	TankWidth       float64 `json:"tank_width"`
	TankHeight      float64 `json:"tank_height"`
	HoleDiameter    float64 `json:"hole_diameter"`
	HoleHeight      float64 `json:"hole_height"`
	WaterDistance   float64 `json:"water_distance"`
	MaxWaterLevel   float64 `json:"max_water_level"`
	MaxHoleDiameter float64 `json:"max_hole_diameter"`
	MaxTankWidth    float64 `json:"max_tank_width"`
}

// DataMessage carries one snapshot.
type DataMessage struct {
	Time         float64 `json:"time"`
	WaterLevel   float64 `json:"water_level"`
	FlowDistance float64 `json:"flow_distance"`
	FlowRate     float64 `json:"flow_rate"`
}

func (InitMessage) Method() string { return MethodInit }
func (DataMessage) Method() string { return MethodData }
func (InitMessage) isMessage()     {}
func (DataMessage) isMessage()     {}

// MarshalJSON adds the method discriminator.
func (m InitMessage) MarshalJSON() ([]byte, error) {
	type fields InitMessage
	return json.Marshal(struct {
		Method string `json:"method"`
		fields
	}{MethodInit, fields(m)})
}

// MarshalJSON adds the method discriminator.
func (m DataMessage) MarshalJSON() ([]byte, error) {
	type fields DataMessage
	return json.Marshal(struct {
		Method string `json:"method"`
		fields
	}{MethodData, fields(m)})
}

// NewInitMessage builds the init frame for spec.
func NewInitMessage(spec TankSpec, l Limits) InitMessage {
	return InitMessage{
		TankWidth:       spec.TankWidth,
		TankHeight:      spec.TankHeight(),
		HoleDiameter:    spec.HoleDiameter,
		HoleHeight:      spec.HoleHeight,
		WaterDistance:   spec.InitialJetDistance(),
		MaxWaterLevel:   l.MaxWaterLevel,
		MaxHoleDiameter: l.MaxHoleDiameter,
		MaxTankWidth:    l.MaxTankWidth,
	}
}

// NewDataMessage converts a snapshot into its wire form.
func NewDataMessage(s Snapshot) DataMessage {
	return DataMessage{
		Time:         Round(s.ElapsedTime, 2),
		WaterLevel:   s.WaterLevelCm,
		FlowDistance: s.FlowDistanceCm,
		FlowRate:     s.FlowRateLps,
	}
}

// Encode marshals msg into a single text frame.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (Message, error) {
	var head struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch head.Method {
	case MethodInit:
		var m InitMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode init frame: %w", err)
		}
		return m, nil
	case MethodData:
		var m DataMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode data frame: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown frame method %q", head.Method)
	}
}
