package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/export"
	"github.com/hb9tf/fieldsense/metrics"
	"github.com/hb9tf/fieldsense/sensor"

	// Blind import support for sqlite3 used by sql.go.
	_ "github.com/mattn/go-sqlite3"
)

var (
	listen   = flag.String("listen", ":8443", "")
	certFile = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile  = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	output   = flag.String("output", "", "Export mechanism to use (one of: sqlite, mysql)")
	buffer   = flag.Int("buffer", 1000, "Number of records queued between the HTTP handler and the exporter.")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/fieldsense", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "fieldsense", "Name of the DB to use.")
)

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exporter setup
	var exporter export.Exporter
	switch strings.ToLower(*output) {
	case "sqlite":
		db, err := sql.Open("sqlite3", *sqliteFile)
		if err != nil {
			glog.Exitf("unable to open sqlite DB %q: %s", *sqliteFile, err)
		}
		// sqlite3 does not handle concurrent writers.
		db.SetMaxOpenConns(1)
		exporter = &export.SQLite{
			DB: db,
		}
	case "mysql":
		pass, err := os.ReadFile(*mysqlPasswordFile)
		if err != nil {
			glog.Exitf("unable to read MySQL password file %q: %s\n", *mysqlPasswordFile, err)
		}
		cfg := mysql.Config{
			User:                 *mysqlUser,
			Passwd:               strings.TrimSpace(string(pass)),
			Net:                  "tcp",
			Addr:                 *mysqlServer,
			DBName:               *mysqlDBName,
			AllowNativePasswords: true,
		}
		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			glog.Exitf("unable to open MySQL DB %q: %s", *mysqlServer, err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		exporter = &export.MySQL{
			DB: db,
		}
	default:
		glog.Exitf("%q is not a supported export method, pick one of: sqlite, mysql", *output)
	}

	// Export records.
	records := make(chan sensor.Record, *buffer)
	go func() {
		if err := exporter.Write(ctx, records); err != nil && !errors.Is(err, context.Canceled) {
			glog.Fatal(err)
		}
	}()

	// Configure and run webserver.
	c := &Collector{
		records: records,
		metrics: metrics.New(),
	}
	server := &http.Server{
		Addr:              *listen,
		Handler:           c.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var err error
	if *certFile != "" || *keyFile != "" {
		err = server.ListenAndServeTLS(*certFile, *keyFile)
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		err = server.ListenAndServe()
	}
	if !errors.Is(err, http.ErrServerClosed) {
		glog.Fatal(err)
	}
}
