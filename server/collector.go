package main

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/hb9tf/fieldsense/metrics"
	"github.com/hb9tf/fieldsense/sensor"
)

const (
	collectEndpoint = "/fieldsense/v1/collect"
	healthEndpoint  = "/healthz"
	metricsEndpoint = "/metrics"
)

type collectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Collector accepts record batches from sensors and queues them for export.
type Collector struct {
	records chan<- sensor.Record
	metrics *metrics.Metrics
}

func (c *Collector) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(collectEndpoint, c.collectHandler).Methods(http.MethodPost)
	r.HandleFunc(healthEndpoint, healthHandler).Methods(http.MethodGet)
	r.Handle(metricsEndpoint, c.metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (c *Collector) collectHandler(w http.ResponseWriter, r *http.Request) {
	records := []sensor.Record{}
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		c.metrics.Collected("invalid", 1)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accepted := 0
	for i := range records {
		if err := records[i].Validate(); err != nil {
			glog.Warningf("dropping record %d from %q: %s\n", i, records[i].Sensor, err)
			c.metrics.Collected("rejected", 1)
			continue
		}
		select {
		case c.records <- records[i]:
			accepted++
		case <-r.Context().Done():
			glog.Warningf("client went away after %d of %d records\n", accepted, len(records))
			c.metrics.Collected("accepted", accepted)
			return
		}
	}
	c.metrics.Collected("accepted", accepted)
	glog.V(1).Infof("accepted %d of %d records\n", accepted, len(records))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(collectResponse{
		Status:      "ok",
		RecordCount: accepted,
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
