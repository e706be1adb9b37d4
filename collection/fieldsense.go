package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hb9tf/fieldsense/ble"
	"github.com/hb9tf/fieldsense/config"
	"github.com/hb9tf/fieldsense/fusion"
	"github.com/hb9tf/fieldsense/metrics"
)

// Flags
var (
	configFile = flag.String("config", "", "path of the YAML config file (optional, FIELDSENSE_* environment variables override it)")
	identifier = flag.String("id", "", "unique identifier of this sensor (overrides sensor_id, defaults to a random UUID)")
	interval   = flag.Duration("interval", 0, "time between sampling cycles, 0 runs a single cycle and exits")
	once       = flag.Bool("once", false, "run a single cycle and exit regardless of -interval")
)

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("unable to load config: %s", err)
	}
	if *identifier != "" {
		cfg.SensorID = *identifier
	}
	if cfg.SensorID == "" {
		cfg.SensorID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		glog.Exitf("invalid config: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
		serveMetrics(ctx, cfg.Metrics.Listen, m)
	}

	var adapter ble.Adapter
	if cfg.BLE.Enabled {
		adapter = ble.NewHostAdapter()
	}
	engine, closeSink, err := newEngine(cfg, cfg.SensorID, adapter, m)
	if err != nil {
		glog.Exitf("unable to set up delivery: %s", err)
	}
	defer closeSink()

	glog.Infof("sensor %s starting with %d sources, delivering via %s\n", cfg.SensorID, len(engine.Sources), engine.Sink.Name())
	run(ctx, engine, *interval, *once)
}

// run executes one cycle, or one per interval until ctx is cancelled.
func run(ctx context.Context, engine *fusion.Engine, interval time.Duration, once bool) {
	engine.RunCycle(ctx)
	if once || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			glog.Infof("stopping: %s\n", ctx.Err())
			return
		case <-ticker.C:
			engine.RunCycle(ctx)
		}
	}
}

func metricsRouter(m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	return r
}

func serveMetrics(ctx context.Context, listen string, m *metrics.Metrics) {
	server := &http.Server{
		Addr:              listen,
		Handler:           metricsRouter(m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("metrics server on %s: %s\n", listen, err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Close()
	}()
}
