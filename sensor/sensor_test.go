package sensor

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashAddress(t *testing.T) {
	addresses := []string{
		"AA:BB:CC:DD:EE:FF",
		"aa:bb:cc:dd:ee:ff",
		"00:11:22:33:44:55(on",
		"",
	}
	seen := map[string]string{}
	for _, a := range addresses {
		h := HashAddress(a)
		if !hexDigest.MatchString(h) {
			t.Errorf("HashAddress(%q) = %q, want 64 lowercase hex characters", a, h)
		}
		if again := HashAddress(a); again != h {
			t.Errorf("HashAddress(%q) not deterministic: %q != %q", a, h, again)
		}
		if other, ok := seen[h]; ok {
			t.Errorf("HashAddress(%q) collides with HashAddress(%q)", a, other)
		}
		seen[h] = a
	}
}

func TestHashAddress_KnownDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashAddress("abc"); got != want {
		t.Errorf("HashAddress(abc) = %s, want %s", got, want)
	}
}

func TestBatch_Records(t *testing.T) {
	batch := &Batch{
		Timestamp: 1700000000,
		SensorID:  "HybridPi",
		Location:  &Location{Lat: 47.1, Lon: 8.5},
		Observations: []Observation{
			{Kind: KindBLE, IdentityHash: HashAddress("AA:BB"), SignalStrength: Signal(-60)},
			{Kind: KindWiFi, IdentityHash: HashAddress("CC:DD")},
			{Kind: KindDeauth, Address: "de:ad:be:ef:00:01"},
			{Kind: KindRFJamming, AverageNoise: -91.5},
		},
	}

	records, err := batch.Records()
	if err != nil {
		t.Fatalf("Records() returned error: %s", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Timestamp != batch.Timestamp || r.Sensor != batch.SensorID {
			t.Errorf("record %d not stamped: %+v", i, r)
		}
		if r.Lat == nil || *r.Lat != 47.1 || r.Lon == nil || *r.Lon != 8.5 {
			t.Errorf("record %d missing location: %+v", i, r)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("record %d invalid: %s", i, err)
		}
	}
	if records[0].RSSI == nil || *records[0].RSSI != -60 {
		t.Errorf("expected ble rssi -60, got %v", records[0].RSSI)
	}
	if records[1].RSSI != nil {
		t.Errorf("expected wifi rssi to be absent, got %d", *records[1].RSSI)
	}
	if records[2].MAC != "de:ad:be:ef:00:01" || records[2].MACHash != "" {
		t.Errorf("expected raw deauth address, got %+v", records[2])
	}
	if records[3].AvgNoise == nil || *records[3].AvgNoise != -91.5 {
		t.Errorf("expected avg_noise -91.5, got %v", records[3].AvgNoise)
	}
}

func TestBatch_RecordsJSON(t *testing.T) {
	batch := &Batch{
		Timestamp: 1700000000,
		SensorID:  "s1",
		Observations: []Observation{
			{Kind: KindDeauth, Address: "de:ad:be:ef:00:01"},
			{Kind: KindRFJamming, AverageNoise: -95},
		},
	}
	records, err := batch.Records()
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}
	got := string(body)
	for _, want := range []string{`"type":"deauth"`, `"mac":"de:ad:be:ef:00:01"`, `"type":"rf_jamming"`, `"avg_noise":-95`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
	for _, unwanted := range []string{`"lat"`, `"lon"`, `"mac_hash"`} {
		if strings.Contains(got, unwanted) {
			t.Errorf("did not expect %s in %s", unwanted, got)
		}
	}
}

func TestBatch_RecordsUnknownKind(t *testing.T) {
	batch := &Batch{Timestamp: 1, SensorID: "s", Observations: []Observation{{Kind: "lora"}}}
	if _, err := batch.Records(); err == nil {
		t.Error("expected error for unknown observation kind")
	}
}

func TestRecord_Validate(t *testing.T) {
	noise := -92.0
	testCases := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"valid ble", Record{Timestamp: 1, Sensor: "s", Type: KindBLE, MACHash: "x"}, false},
		{"valid rf_jamming", Record{Timestamp: 1, Sensor: "s", Type: KindRFJamming, AvgNoise: &noise}, false},
		{"missing timestamp", Record{Sensor: "s", Type: KindBLE, MACHash: "x"}, true},
		{"missing sensor", Record{Timestamp: 1, Type: KindBLE, MACHash: "x"}, true},
		{"missing hash", Record{Timestamp: 1, Sensor: "s", Type: KindWiFi}, true},
		{"deauth without mac", Record{Timestamp: 1, Sensor: "s", Type: KindDeauth}, true},
		{"jamming without noise", Record{Timestamp: 1, Sensor: "s", Type: KindRFJamming}, true},
		{"unknown type", Record{Timestamp: 1, Sensor: "s", Type: "zigbee"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.record.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestBatch_Empty(t *testing.T) {
	var nilBatch *Batch
	if !nilBatch.Empty() {
		t.Error("nil batch should be empty")
	}
	if !(&Batch{}).Empty() {
		t.Error("batch without observations should be empty")
	}
	if (&Batch{Observations: []Observation{{Kind: KindBLE}}}).Empty() {
		t.Error("batch with observations should not be empty")
	}
}
