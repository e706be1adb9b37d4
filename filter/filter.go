package filter

import "github.com/hb9tf/fieldsense/sensor"

type Filterer interface {
	ShouldIgnore(*sensor.Observation) bool
}

// Filter returns the observations none of the filters want to ignore.
func Filter(observations []sensor.Observation, filters []Filterer) []sensor.Observation {
	if len(filters) == 0 {
		return observations
	}
	kept := observations[:0:0]
	for i := range observations {
		skip := false
		for _, f := range filters {
			if f.ShouldIgnore(&observations[i]) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		kept = append(kept, observations[i])
	}
	return kept
}

// MinSignal ignores ble and wifi observations weaker than Threshold dBm.
// Observations without a known signal strength and anomaly events are kept.
type MinSignal struct {
	Threshold int
}

func (f *MinSignal) ShouldIgnore(o *sensor.Observation) bool {
	switch o.Kind {
	case sensor.KindBLE, sensor.KindWiFi:
		return o.SignalStrength != nil && *o.SignalStrength < f.Threshold
	default:
		return false
	}
}
