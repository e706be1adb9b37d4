package export

import (
	"context"
	"database/sql"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const recordCountInfo = 1000

// Exporter persists records received by the collector until the channel is
// closed or the context is cancelled.
type Exporter interface {
	Write(context.Context, <-chan sensor.Record) error
}

// insertAll runs insert for every record and logs the running counts.
func insertAll(ctx context.Context, db *sql.DB, insert string, records <-chan sensor.Record) error {
	statement, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer statement.Close()

	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for {
		var r sensor.Record
		select {
		case <-ctx.Done():
			glog.Infof("Record export counts: %+v\n", counts)
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				glog.Infof("Record export counts: %+v\n", counts)
				return nil
			}
			r = rec
		}

		counts["total"] += 1
		if _, err := statement.ExecContext(ctx, args(r)...); err != nil {
			counts["error"] += 1
			glog.Warningf("error storing record: %s\n", err)
			continue
		}
		counts["success"] += 1
		if counts["total"]%recordCountInfo == 0 {
			glog.Infof("Record export counts: %+v\n", counts)
		}
	}
}

// args orders the record fields like the scans table columns. Absent values
// are stored as NULL.
func args(r sensor.Record) []any {
	return []any{
		r.Timestamp,
		nullString(r.MACHash),
		r.RSSI,
		r.Sensor,
		string(r.Type),
		nullString(r.MAC),
		r.AvgNoise,
		r.Lat,
		r.Lon,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
