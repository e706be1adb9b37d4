package main

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/ble"
	"github.com/hb9tf/fieldsense/config"
	"github.com/hb9tf/fieldsense/deauth"
	"github.com/hb9tf/fieldsense/delivery"
	"github.com/hb9tf/fieldsense/filter"
	"github.com/hb9tf/fieldsense/fusion"
	"github.com/hb9tf/fieldsense/gps"
	"github.com/hb9tf/fieldsense/jamming"
	"github.com/hb9tf/fieldsense/metrics"
	"github.com/hb9tf/fieldsense/sensor"
	"github.com/hb9tf/fieldsense/wifi"
)

// sources returns the enabled sources in merge order.
func sources(cfg *config.Config, bleAdapter ble.Adapter) []sensor.Source {
	var srcs []sensor.Source
	if cfg.BLE.Enabled {
		srcs = append(srcs, &ble.Source{
			Adapter: bleAdapter,
			Timeout: cfg.ScanTimeout,
		})
	}
	if cfg.WiFi.Enabled {
		srcs = append(srcs, &wifi.Source{
			Interface: cfg.WiFi.Interface,
			Timeout:   cfg.ScanTimeout,
			Sudo:      cfg.WiFi.Sudo,
		})
	}
	if cfg.Deauth.Enabled {
		srcs = append(srcs, &deauth.Source{
			Interface: cfg.Deauth.Interface,
			Timeout:   cfg.ScanTimeout,
		})
	}
	if cfg.Jamming.Enabled {
		srcs = append(srcs, &jamming.Source{
			Interface: cfg.Jamming.Interface,
			Threshold: cfg.Jamming.Threshold,
			Timeout:   cfg.ScanTimeout,
		})
	}
	return srcs
}

func locator(cfg *config.Config) sensor.Locator {
	if !cfg.GPS.Enabled {
		return nil
	}
	return &gps.Source{
		Device:      cfg.GPS.Device,
		Baud:        cfg.GPS.Baud,
		MaxAttempts: cfg.GPS.MaxAttempts,
		ReadTimeout: cfg.GPS.ReadTimeout,
		Prefix:      cfg.GPS.Prefix,
	}
}

// sink builds the configured delivery sink and a function releasing it.
func sink(cfg *config.Config, sensorID string) (delivery.Sink, func(), error) {
	switch strings.ToLower(cfg.Delivery.Kind) {
	case config.DeliveryHTTP:
		return &delivery.HTTP{
			Endpoint: cfg.Delivery.Endpoint,
			Timeout:  cfg.Delivery.Timeout,
		}, func() {}, nil
	case config.DeliveryMQTT:
		m, err := delivery.NewMQTT(cfg.Delivery.MQTT.Broker, cfg.Delivery.MQTT.Topic, "fieldsense-"+sensorID, cfg.Delivery.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case config.DeliveryKafka:
		k := delivery.NewKafka(cfg.Delivery.Kafka.Brokers, cfg.Delivery.Kafka.Topic, cfg.Delivery.Timeout)
		return k, func() {
			if err := k.Close(); err != nil {
				glog.Warningf("error closing kafka writer: %s\n", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("%q is not a supported delivery kind, pick one of: http, mqtt, kafka", cfg.Delivery.Kind)
}

func filters(cfg *config.Config) []filter.Filterer {
	var fs []filter.Filterer
	if cfg.Filter.MinSignal != 0 {
		fs = append(fs, &filter.MinSignal{Threshold: cfg.Filter.MinSignal})
	}
	return fs
}

// newEngine wires the sensor from cfg. The returned function releases the sink.
func newEngine(cfg *config.Config, sensorID string, bleAdapter ble.Adapter, m *metrics.Metrics) (*fusion.Engine, func(), error) {
	s, closeSink, err := sink(cfg, sensorID)
	if err != nil {
		return nil, nil, err
	}
	e := &fusion.Engine{
		SensorID: sensorID,
		Sources:  sources(cfg, bleAdapter),
		Locator:  locator(cfg),
		Filters:  filters(cfg),
		Burst: fusion.AlertRule{
			Enabled:   cfg.Alerts.Burst.Enabled,
			Threshold: cfg.Alerts.Burst.Threshold,
		},
		LowTraffic: fusion.AlertRule{
			Enabled:   cfg.Alerts.LowTraffic.Enabled,
			Threshold: cfg.Alerts.LowTraffic.Threshold,
		},
		Sink:    s,
		Metrics: m,
	}
	return e, closeSink, nil
}
