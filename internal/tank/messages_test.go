package tank

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMessageWireShape(t *testing.T) {
	msg := NewInitMessage(TankSpec{WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 50}, DefaultLimits())
	data, err := Encode(msg)
	require.NoError(t, err)

	var got map[string]float64
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "init", raw["method"])
	delete(raw, "method")
	b, _ := json.Marshal(raw)
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, map[string]float64{
		"tank_width":        50,
		"tank_height":       120,
		"hole_diameter":     1,
		"hole_height":       10,
		"water_distance":    60,
		"max_water_level":   200,
		"max_hole_diameter": 20,
		"max_tank_width":    300,
	}, got)
}

func TestDataMessageWireShape(t *testing.T) {
	msg := NewDataMessage(Snapshot{ElapsedTime: 0.30000000000000004, WaterLevelCm: 99.95, FlowDistanceCm: 59.98, FlowRateLps: 0.33})
	data, err := Encode(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"data","time":0.3,"water_level":99.95,"flow_distance":59.98,"flow_rate":0.33}`, string(data))
}

func TestDecodeRoundTrip(t *testing.T) {
	in := []Message{
		NewInitMessage(TankSpec{WaterLevel: 80, HoleHeight: 20, HoleDiameter: 2, TankWidth: 40}, DefaultLimits()),
		DataMessage{Time: 1.2, WaterLevel: 79.5, FlowDistance: 40, FlowRate: 1.2345},
	}
	for _, m := range in {
		data, err := Encode(m)
		require.NoError(t, err)
		out, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, m, out)
	}
}

func TestDecodeRejectsUnknownMethod(t *testing.T) {
	_, err := Decode([]byte(`{"method":"ping"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
