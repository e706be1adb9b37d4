package ble

import (
	"tinygo.org/x/bluetooth"
)

// HostAdapter drives the host's Bluetooth controller (BlueZ on Linux).
type HostAdapter struct {
	adapter *bluetooth.Adapter
}

func NewHostAdapter() *HostAdapter {
	return &HostAdapter{adapter: bluetooth.DefaultAdapter}
}

func (h *HostAdapter) Enable() error {
	return h.adapter.Enable()
}

func (h *HostAdapter) Scan(found func(Advertisement)) error {
	return h.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		found(Advertisement{
			Address: result.Address.String(),
			RSSI:    int(result.RSSI),
		})
	})
}

func (h *HostAdapter) StopScan() error {
	return h.adapter.StopScan()
}
