package export

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hb9tf/fieldsense/sensor"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("unable to open sqlite DB: %s", err)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_Write(t *testing.T) {
	db := openMemory(t)
	lat, lon := 46.95, 7.44
	avg := -91.67
	records := make(chan sensor.Record, 3)
	records <- sensor.Record{Timestamp: 1700000000, Sensor: "HybridPi", Type: sensor.KindBLE, MACHash: sensor.HashAddress("AA:BB:CC:DD:EE:FF"), RSSI: sensor.Signal(-61), Lat: &lat, Lon: &lon}
	records <- sensor.Record{Timestamp: 1700000000, Sensor: "HybridPi", Type: sensor.KindDeauth, MAC: "de:ad:be:ef:00:01"}
	records <- sensor.Record{Timestamp: 1700000000, Sensor: "HybridPi", Type: sensor.KindRFJamming, AvgNoise: &avg}
	close(records)

	if err := (&SQLite{DB: db}).Write(context.Background(), records); err != nil {
		t.Fatalf("Write() returned error: %s", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("Expected 3 stored records, got %d", count)
	}

	var (
		macHash sql.NullString
		rssi    sql.NullInt64
		gotLat  sql.NullFloat64
	)
	if err := db.QueryRow(`SELECT mac_hash, rssi, lat FROM scans WHERE type = 'ble'`).Scan(&macHash, &rssi, &gotLat); err != nil {
		t.Fatal(err)
	}
	if macHash.String != sensor.HashAddress("AA:BB:CC:DD:EE:FF") || rssi.Int64 != -61 || gotLat.Float64 != 46.95 {
		t.Errorf("Unexpected ble row: %v %v %v", macHash, rssi, gotLat)
	}

	var mac sql.NullString
	if err := db.QueryRow(`SELECT mac_hash, rssi, mac FROM scans WHERE type = 'deauth'`).Scan(&macHash, &rssi, &mac); err != nil {
		t.Fatal(err)
	}
	if macHash.Valid || rssi.Valid {
		t.Errorf("Expected NULL hash and rssi for deauth, got %v %v", macHash, rssi)
	}
	if mac.String != "de:ad:be:ef:00:01" {
		t.Errorf("Expected raw deauth address, got %v", mac)
	}

	var noise sql.NullFloat64
	if err := db.QueryRow(`SELECT avg_noise FROM scans WHERE type = 'rf_jamming'`).Scan(&noise); err != nil {
		t.Fatal(err)
	}
	if noise.Float64 != -91.67 {
		t.Errorf("Expected avg_noise -91.67, got %v", noise)
	}
}

func TestSQLite_WriteTwiceKeepsTable(t *testing.T) {
	db := openMemory(t)
	for i := 0; i < 2; i++ {
		records := make(chan sensor.Record, 1)
		records <- sensor.Record{Timestamp: 1, Sensor: "s", Type: sensor.KindWiFi, MACHash: "h"}
		close(records)
		if err := (&SQLite{DB: db}).Write(context.Background(), records); err != nil {
			t.Fatalf("Write() #%d returned error: %s", i, err)
		}
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records, got %d", count)
	}
}

func TestSQLite_WriteCancelled(t *testing.T) {
	db := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	records := make(chan sensor.Record)
	done := make(chan error)
	go func() {
		done <- (&SQLite{DB: db}).Write(ctx, records)
	}()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
