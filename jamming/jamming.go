package jamming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	SourceName       = "rf_jamming"
	dumpAlias        = "iw"
	defaultTimeout   = 10 * time.Second
	DefaultThreshold = -90.0
	pipeWaitDelay    = time.Second
)

// ErrNoReading is returned by Evaluate when there were no samples to average.
var ErrNoReading = errors.New("no noise samples")

// markers select the lines of a station dump that carry a level in dBm.
var markers = []string{"signal", "noise"}

type Source struct {
	Interface string
	// Threshold in dBm. An average level strictly below it is reported.
	Threshold float64
	Timeout   time.Duration
	// Binary overrides the iw executable.
	Binary string
}

func (s Source) Name() string {
	return SourceName
}

// Collect runs a station dump and returns a single rf_jamming observation if
// the average level is below the threshold. Command failures are logged and
// treated like an empty dump.
func (s *Source) Collect(ctx context.Context) ([]sensor.Observation, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := dumpAlias
	if s.Binary != "" {
		binary = s.Binary
	}
	cmd := exec.CommandContext(ctx, binary, "dev", s.Interface, "station", "dump")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sensor.ErrSourceUnavailable, err)
	}
	cmd.WaitDelay = pipeWaitDelay
	glog.V(1).Infof("Running station dump: %q\n", cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: unable to start station dump: %s", sensor.ErrSourceUnavailable, err)
	}
	// Children of the killed command may still hold the pipe open.
	closePipe := context.AfterFunc(ctx, func() { out.Close() })
	defer closePipe()
	samples := ParseSamples(out)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: station dump ended with error: %s", sensor.ErrSourceUnavailable, err)
	}

	obs, alert, err := Evaluate(samples, s.Threshold)
	if err != nil {
		glog.V(1).Infof("RF jamming detector on %s: %s", s.Interface, err)
		return nil, nil
	}
	if !alert {
		return nil, nil
	}
	glog.Warningf("RF jamming detected on %s: average level %.2f dBm below %.2f dBm", s.Interface, obs.AverageNoise, s.Threshold)
	return []sensor.Observation{obs}, nil
}

// ParseSamples extracts the trailing numeric level from every marker line.
// Per-chain values in brackets and units are ignored, so both
// "signal: -45 dBm" and "signal: -45 [-47, -48] dBm" yield -45.
func ParseSamples(r io.Reader) []float64 {
	var samples []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		glog.V(3).Info(line)
		if !hasMarker(line) {
			continue
		}
		v, err := trailingNumber(line)
		if err != nil {
			glog.Warningf("error parsing line: %s\n", err)
			continue
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		glog.Warningf("error reading station dump: %s\n", err)
	}
	return samples
}

// Evaluate averages the samples and reports whether the mean is below threshold.
func Evaluate(samples []float64, threshold float64) (sensor.Observation, bool, error) {
	if len(samples) == 0 {
		return sensor.Observation{}, false, ErrNoReading
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	avg := sum / float64(len(samples))
	if avg >= threshold {
		return sensor.Observation{}, false, nil
	}
	return sensor.Observation{
		Kind:         sensor.KindRFJamming,
		AverageNoise: avg,
	}, true, nil
}

func hasMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func trailingNumber(line string) (float64, error) {
	stripped := line
	if open := strings.Index(stripped, "["); open >= 0 {
		if end := strings.LastIndex(stripped, "]"); end > open {
			stripped = stripped[:open] + stripped[end+1:]
		}
	}
	fields := strings.Fields(stripped)
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: no numeric level in %q", sensor.ErrParse, line)
}
