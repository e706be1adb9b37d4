package sensor

import "errors"

var (
	// ErrSourceUnavailable covers missing adapters, interfaces or devices,
	// permission problems and external commands that failed to run.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParse is returned for malformed tool output or sentences.
	ErrParse = errors.New("parse failure")
	// ErrDelivery is returned when a batch could not be handed to the collector.
	ErrDelivery = errors.New("delivery failure")
)
