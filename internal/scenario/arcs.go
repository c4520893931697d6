package scenario

// BuiltIn returns predefined scenarios selectable by name.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"demo": {
			Name:        "Demo",
			Description: "A single half-metre tank draining through a one centimetre hole.",
			Stages: []Stage{
				{Name: "drain", WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 50},
			},
		},
		"hole-sweep": {
			Name:        "Hole Sweep",
			Description: "The same tank drained through progressively wider holes.",
			Stages: []Stage{
				{Name: "narrow", WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 20},
				{Name: "medium", WaterLevel: 100, HoleHeight: 10, HoleDiameter: 2, TankWidth: 20},
				{Name: "wide", WaterLevel: 100, HoleHeight: 10, HoleDiameter: 4, TankWidth: 20},
			},
		},
		"refill": {
			Name:        "Refill",
			Description: "A slow tank is refilled with a wider outlet while it still takes a minute or more to drain.",
			Stages: []Stage{
				{
					Name:        "slow",
					Description: "Wide tank, small outlet.",
					WaterLevel:  150, HoleHeight: 20, HoleDiameter: 1, TankWidth: 60,
					Triggers: []Trigger{{Event: EventDrained, Value: 60, Next: "faster"}},
				},
				{
					Name:        "faster",
					Description: "Same tank with a larger outlet.",
					WaterLevel:  150, HoleHeight: 20, HoleDiameter: 6, TankWidth: 60,
					Triggers: []Trigger{{Event: EventDrained, Value: 60, Next: "fastest"}},
				},
				{
					Name:        "fastest",
					Description: "Largest outlet.",
					WaterLevel:  150, HoleHeight: 20, HoleDiameter: 12, TankWidth: 60,
				},
			},
		},
	}
}
