package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	SourceName        = "ble"
	defaultTimeout    = 10 * time.Second
	stopRetryInterval = 50 * time.Millisecond
)

// stopGrace bounds how long a scan that refuses to stop is waited for.
var stopGrace = 2 * time.Second

// Advertisement is what the scanner reports for every received advertising packet.
type Advertisement struct {
	Address string
	RSSI    int
}

// Adapter abstracts the local Bluetooth controller.
type Adapter interface {
	Enable() error
	// Scan blocks and calls found for every advertisement until StopScan is called.
	Scan(found func(Advertisement)) error
	StopScan() error
}

type Source struct {
	Adapter Adapter
	Timeout time.Duration
}

func (s Source) Name() string {
	return SourceName
}

// Collect performs a passive discovery for the configured timeout and returns
// one observation per advertiser, carrying the most recently reported RSSI.
func (s *Source) Collect(ctx context.Context) ([]sensor.Observation, error) {
	if s.Adapter == nil {
		return nil, fmt.Errorf("%w: no bluetooth adapter configured", sensor.ErrSourceUnavailable)
	}
	if err := s.Adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: unable to enable bluetooth adapter: %s", sensor.ErrSourceUnavailable, err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
		rssi  = map[string]int{}
	)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- s.Adapter.Scan(func(adv Advertisement) {
			if adv.Address == "" {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if _, ok := rssi[adv.Address]; !ok {
				order = append(order, adv.Address)
			}
			rssi[adv.Address] = adv.RSSI
		})
	}()

	var err error
	select {
	case err = <-scanErr:
		// The scan ended before the deadline.
	case <-ctx.Done():
		err = s.stopScan(scanErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: BLE scan failed: %s", sensor.ErrSourceUnavailable, err)
	}

	mu.Lock()
	defer mu.Unlock()
	observations := make([]sensor.Observation, 0, len(order))
	for _, addr := range order {
		observations = append(observations, sensor.Observation{
			Kind:           sensor.KindBLE,
			IdentityHash:   sensor.HashAddress(addr),
			SignalStrength: sensor.Signal(rssi[addr]),
		})
	}
	glog.V(2).Infof("BLE discovery found %d advertisers", len(observations))
	return observations, nil
}

// stopScan stops the running scan and waits for Scan to return. StopScan fails
// if it wins the race against Scan registering itself, so it is retried until
// the scan ends or stopGrace expires. A scan still running after that is
// abandoned and the advertisements seen so far are kept.
func (s *Source) stopScan(scanErr <-chan error) error {
	if err := s.Adapter.StopScan(); err != nil {
		glog.V(2).Infof("BLE scan not stopped yet: %s", err)
	}
	retry := time.NewTicker(stopRetryInterval)
	defer retry.Stop()
	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	for {
		select {
		case err := <-scanErr:
			return err
		case <-retry.C:
			if err := s.Adapter.StopScan(); err != nil {
				glog.V(2).Infof("BLE scan not stopped yet: %s", err)
			}
		case <-grace.C:
			glog.Warningf("BLE scan did not stop within %s, abandoning it\n", stopGrace)
			return nil
		}
	}
}
