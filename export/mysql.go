package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	mysqlCreateTableTmpl = "CREATE TABLE IF NOT EXISTS scans (" +
		"`ID`        BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT," +
		"`timestamp` BIGINT NOT NULL," +
		"`mac_hash`  CHAR(64)," +
		"`rssi`      INT," +
		"`sensor`    VARCHAR(255) NOT NULL," +
		"`type`      VARCHAR(32) NOT NULL," +
		"`mac`       VARCHAR(64)," +
		"`avg_noise` DOUBLE," +
		"`lat`       DOUBLE," +
		"`lon`       DOUBLE," +
		"INDEX (`timestamp`, `sensor`)" +
		");"
	mysqlInsertRecordTmpl = "INSERT INTO scans (" +
		"`timestamp`, `mac_hash`, `rssi`, `sensor`, `type`, `mac`, `avg_noise`, `lat`, `lon`" +
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);"
)

type MySQL struct {
	DB *sql.DB
}

func (m *MySQL) Write(ctx context.Context, records <-chan sensor.Record) error {
	if _, err := m.DB.ExecContext(ctx, mysqlCreateTableTmpl); err != nil {
		return fmt.Errorf("unable to create table: %w", err)
	}
	return insertAll(ctx, m.DB, mysqlInsertRecordTmpl, records)
}
