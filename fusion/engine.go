package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/delivery"
	"github.com/hb9tf/fieldsense/filter"
	"github.com/hb9tf/fieldsense/metrics"
	"github.com/hb9tf/fieldsense/sensor"
)

// Engine runs one sampling cycle per RunCycle call. It holds configuration
// only and keeps no state between cycles.
type Engine struct {
	SensorID string

	// Sources are merged in this order, typically ble, wifi, deauth, rf_jamming.
	Sources []sensor.Source
	// Locator is optional, nil disables positioning.
	Locator sensor.Locator
	Filters []filter.Filterer

	Burst      AlertRule
	LowTraffic AlertRule

	Sink    delivery.Sink
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Report describes the outcome of a single cycle.
type Report struct {
	Batch *sensor.Batch
	// Results holds one entry per source in merge order, followed by the locator.
	Results []sensor.Result
	Alerts  []Alert
	// Delivered is true if the batch was handed to the sink.
	Delivered   bool
	DeliveryErr error
}

func (r *Report) String() string {
	status := "skipped"
	switch {
	case r.Delivered && r.DeliveryErr != nil:
		status = "failed"
	case r.Delivered:
		status = "ok"
	}
	return fmt.Sprintf("%d observations, %d alerts, delivery %s", len(r.Batch.Observations), len(r.Alerts), status)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RunCycle samples all sources concurrently, fuses their observations into one
// batch, evaluates the traffic alerts and delivers the batch if it is not empty.
// Source and delivery failures are logged and reported, never returned.
func (e *Engine) RunCycle(ctx context.Context) *Report {
	batch := &sensor.Batch{
		Timestamp: e.now().Unix(),
		SensorID:  e.SensorID,
	}

	results := e.sample(ctx)
	for _, res := range results {
		if res.Failed() {
			glog.Warningf("source %s\n", res)
			e.Metrics.SourceFailed(res.Source)
			continue
		}
		glog.V(1).Infof("source %s\n", res)
		if res.Location != nil {
			batch.Location = res.Location
		}
		batch.Observations = append(batch.Observations, res.Observations...)
	}
	batch.Observations = filter.Filter(batch.Observations, e.Filters)
	for _, o := range batch.Observations {
		e.Metrics.Observed(string(o.Kind))
	}

	report := &Report{
		Batch:   batch,
		Results: results,
		Alerts:  EvaluateAlerts(len(batch.Observations), e.Burst, e.LowTraffic),
	}
	for _, a := range report.Alerts {
		glog.Warningf("ALERT %s\n", a)
		e.Metrics.Alerted(string(a.Kind))
	}

	switch {
	case batch.Empty():
		glog.V(1).Info("no observations this cycle, skipping delivery")
	case ctx.Err() != nil:
		glog.Warningf("cycle cancelled, dropping %d observations: %s\n", len(batch.Observations), ctx.Err())
	case e.Sink == nil:
		glog.Warning("no delivery sink configured, dropping batch")
	default:
		report.Delivered = true
		report.DeliveryErr = e.Sink.Deliver(ctx, batch)
		e.Metrics.Delivered(e.Sink.Name(), report.DeliveryErr)
		if report.DeliveryErr != nil {
			glog.Warningf("unable to deliver batch via %s: %s\n", e.Sink.Name(), report.DeliveryErr)
		}
	}

	e.Metrics.CycleCompleted()
	glog.Infof("cycle %d: %s\n", batch.Timestamp, report)
	return report
}

// sample runs every source and the locator in its own goroutine and collects
// their results in a fixed order regardless of completion order.
func (e *Engine) sample(ctx context.Context) []sensor.Result {
	n := len(e.Sources)
	if e.Locator != nil {
		n++
	}
	results := make([]sensor.Result, n)

	var wg sync.WaitGroup
	for i, src := range e.Sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = collect(ctx, src)
		}()
	}
	if e.Locator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[n-1] = locate(ctx, e.Locator)
		}()
	}
	wg.Wait()

	return results
}

func collect(ctx context.Context, src sensor.Source) (res sensor.Result) {
	res.Source = src.Name()
	defer recoverInto(&res)
	res.Observations, res.Err = src.Collect(ctx)
	if res.Err != nil {
		res.Observations = nil
	}
	return res
}

func locate(ctx context.Context, loc sensor.Locator) (res sensor.Result) {
	res.Source = loc.Name()
	defer recoverInto(&res)
	res.Location, res.Err = loc.Fix(ctx)
	if res.Err != nil {
		res.Location = nil
	}
	return res
}

// recoverInto turns a panicking source into a failed result.
func recoverInto(res *sensor.Result) {
	if r := recover(); r != nil {
		res.Observations = nil
		res.Location = nil
		res.Err = fmt.Errorf("%w: panic: %v", sensor.ErrSourceUnavailable, r)
	}
}
