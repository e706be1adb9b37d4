package sensor

import (
	"context"
	"fmt"
)

// Kind tags the payload carried by an Observation.
type Kind string

const (
	KindBLE       Kind = "ble"
	KindWiFi      Kind = "wifi"
	KindDeauth    Kind = "deauth"
	KindRFJamming Kind = "rf_jamming"
)

// Observation is a single signal detected during one cycle.
type Observation struct {
	Kind Kind

	// IdentityHash is set for ble and wifi observations.
	IdentityHash string
	// Address is the raw transmitter address of a deauth event.
	Address string
	// SignalStrength in dBm, nil if the source could not determine it.
	SignalStrength *int
	// AverageNoise in dBm, only set for rf_jamming observations.
	AverageNoise float64
}

type Location struct {
	Lat float64
	Lon float64
}

// Batch is everything collected during one cycle. All observations share the
// same timestamp, sensor and location.
type Batch struct {
	Timestamp    int64
	SensorID     string
	Location     *Location
	Observations []Observation
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.Observations) == 0
}

// Source is implemented by everything that yields observations during a cycle.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Observation, error)
}

// Locator is implemented by position sources. A nil location without an error
// means no fix was available.
type Locator interface {
	Name() string
	Fix(ctx context.Context) (*Location, error)
}

// Result is the outcome of running one source during a cycle.
type Result struct {
	Source       string
	Observations []Observation
	Location     *Location
	Err          error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: failed: %s", r.Source, r.Err)
	}
	if r.Location != nil {
		return fmt.Sprintf("%s: fix %.6f,%.6f", r.Source, r.Location.Lat, r.Location.Lon)
	}
	return fmt.Sprintf("%s: %d observations", r.Source, len(r.Observations))
}

// Signal returns a pointer to a copy of v, for use as Observation.SignalStrength.
func Signal(v int) *int {
	return &v
}
