package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hb9tf/fieldsense/sensor"
)

const contentType = "application/json"

// Sink hands a batch to the collector. Delivery is at-most-once: sinks do not
// retry, buffer or deduplicate.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, batch *sensor.Batch) error
}

// payload is the JSON array of stamped records shared by all sinks.
func payload(batch *sensor.Batch) ([]byte, error) {
	records, err := batch.Records()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sensor.ErrDelivery, err)
	}
	body, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("%w: error marshalling records to JSON: %s", sensor.ErrDelivery, err)
	}
	return body, nil
}
