package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS scans (
		"ID"         INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"timestamp"  INTEGER NOT NULL,
		"mac_hash"   TEXT,
		"rssi"       INTEGER,
		"sensor"     TEXT NOT NULL,
		"type"       TEXT NOT NULL,
		"mac"        TEXT,
		"avg_noise"  REAL,
		"lat"        REAL,
		"lon"        REAL
	);`
	sqliteInsertRecordTmpl = `INSERT INTO scans (
		timestamp,
		mac_hash,
		rssi,
		sensor,
		type,
		mac,
		avg_noise,
		lat,
		lon
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

type SQLite struct {
	DB *sql.DB
}

func (s *SQLite) Write(ctx context.Context, records <-chan sensor.Record) error {
	if _, err := s.DB.ExecContext(ctx, sqliteCreateTableTmpl); err != nil {
		return fmt.Errorf("unable to create table: %w", err)
	}
	return insertAll(ctx, s.DB, sqliteInsertRecordTmpl, records)
}
