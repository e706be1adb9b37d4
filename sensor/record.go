package sensor

import (
	"errors"
	"fmt"
)

// Record is the flattened wire representation of one stamped observation.
type Record struct {
	Timestamp int64    `json:"timestamp"`
	Sensor    string   `json:"sensor"`
	Type      Kind     `json:"type"`
	MACHash   string   `json:"mac_hash,omitempty"`
	MAC       string   `json:"mac,omitempty"`
	RSSI      *int     `json:"rssi,omitempty"`
	AvgNoise  *float64 `json:"avg_noise,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

func (r *Record) Validate() error {
	if r.Timestamp <= 0 {
		return errors.New("timestamp is required")
	}
	if r.Sensor == "" {
		return errors.New("sensor is required")
	}
	switch r.Type {
	case KindBLE, KindWiFi:
		if r.MACHash == "" {
			return fmt.Errorf("mac_hash is required for %s records", r.Type)
		}
	case KindDeauth:
		if r.MAC == "" {
			return errors.New("mac is required for deauth records")
		}
	case KindRFJamming:
		if r.AvgNoise == nil {
			return errors.New("avg_noise is required for rf_jamming records")
		}
	default:
		return fmt.Errorf("unknown record type %q", r.Type)
	}
	return nil
}

// Records stamps every observation with the batch timestamp, sensor and location.
func (b *Batch) Records() ([]Record, error) {
	records := make([]Record, 0, len(b.Observations))
	for i, o := range b.Observations {
		r := Record{
			Timestamp: b.Timestamp,
			Sensor:    b.SensorID,
			Type:      o.Kind,
		}
		switch o.Kind {
		case KindBLE, KindWiFi:
			r.MACHash = o.IdentityHash
			r.RSSI = o.SignalStrength
		case KindDeauth:
			r.MAC = o.Address
			r.RSSI = o.SignalStrength
		case KindRFJamming:
			avg := o.AverageNoise
			r.AvgNoise = &avg
		default:
			return nil, fmt.Errorf("observation %d: unknown kind %q", i, o.Kind)
		}
		if b.Location != nil {
			lat, lon := b.Location.Lat, b.Location.Lon
			r.Lat = &lat
			r.Lon = &lon
		}
		records = append(records, r)
	}
	return records, nil
}
