package jamming

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hb9tf/fieldsense/sensor"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name      string
		samples   []float64
		threshold float64
		wantAlert bool
		wantAvg   float64
	}{
		{"jammed", []float64{-95, -92, -88}, -90, true, -91.67},
		{"healthy", []float64{-80, -70}, -90, false, 0},
		{"exactly at threshold", []float64{-90, -90}, -90, false, 0},
		{"single low sample", []float64{-99}, -90, true, -99},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs, alert, err := Evaluate(tc.samples, tc.threshold)
			if err != nil {
				t.Fatalf("Evaluate() returned error: %s", err)
			}
			if alert != tc.wantAlert {
				t.Fatalf("Expected alert %v, got %v", tc.wantAlert, alert)
			}
			if !alert {
				return
			}
			if obs.Kind != sensor.KindRFJamming {
				t.Errorf("Expected kind rf_jamming, got %s", obs.Kind)
			}
			if math.Abs(obs.AverageNoise-tc.wantAvg) > 0.01 {
				t.Errorf("Expected average %.2f, got %.4f", tc.wantAvg, obs.AverageNoise)
			}
		})
	}
}

func TestEvaluate_NoReading(t *testing.T) {
	_, alert, err := Evaluate(nil, -90)
	if !errors.Is(err, ErrNoReading) {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}
	if alert {
		t.Error("No samples must not raise an alert")
	}
}

func TestParseSamples(t *testing.T) {
	dump := `Station 00:11:22:33:44:55 (on wlan0)
	inactive time:	340 ms
	rx bytes:	12345
	signal:  	-95 [-95, -97] dBm
	signal avg:	-92 dBm
	tx bitrate:	65.0 MBit/s
	beacon signal avg:	-88
	noise:	garbage
Station 66:77:88:99:aa:bb (on wlan0)
	signal:  	-71.5 dBm
`
	samples := ParseSamples(strings.NewReader(dump))
	want := []float64{-95, -92, -88, -71.5}
	if len(samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d: %v", len(want), len(samples), samples)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], samples[i])
		}
	}
}

func TestParseSamples_Empty(t *testing.T) {
	if samples := ParseSamples(strings.NewReader("")); len(samples) != 0 {
		t.Errorf("Expected no samples, got %v", samples)
	}
}

func TestTrailingNumber(t *testing.T) {
	testCases := []struct {
		line    string
		want    float64
		wantErr bool
	}{
		{"signal: -45", -45, false},
		{"signal: -45 dBm", -45, false},
		{"signal:  \t-45 [-47, -48] dBm", -45, false},
		{"noise: -101.25 dBm", -101.25, false},
		{"signal: unknown", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			got, err := trailingNumber(tc.line)
			if (err != nil) != tc.wantErr {
				t.Fatalf("trailingNumber(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("trailingNumber(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestSource_CollectCommandMissing(t *testing.T) {
	src := &Source{
		Interface: "wlan0",
		Threshold: -90,
		Timeout:   time.Second,
		Binary:    "/nonexistent/fieldsense-iw",
	}
	obs, err := src.Collect(context.Background())
	if !errors.Is(err, sensor.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("Expected no observations, got %d", len(obs))
	}
}

// fakeTool writes an executable shell script standing in for iw.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iw")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSource_CollectThresholdAsConfigured(t *testing.T) {
	bin := fakeTool(t, "echo '\tsignal:  \t-10 [-10] dBm'\necho '\tsignal:  \t-20 [-20] dBm'\n")
	testCases := []struct {
		name      string
		threshold float64
		wantAlert bool
	}{
		{"zero threshold is not replaced", 0, true},
		{"mean above threshold", -30, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &Source{Interface: "wlan0", Threshold: tc.threshold, Timeout: 2 * time.Second, Binary: bin}
			obs, err := src.Collect(context.Background())
			if err != nil {
				t.Fatalf("Collect() returned error: %s", err)
			}
			if got := len(obs) == 1; got != tc.wantAlert {
				t.Fatalf("Expected alert %v, got %d observations", tc.wantAlert, len(obs))
			}
			if tc.wantAlert && obs[0].AverageNoise != -15 {
				t.Errorf("Expected average -15, got %v", obs[0].AverageNoise)
			}
		})
	}
}

func TestSource_CollectChildHoldsPipe(t *testing.T) {
	bin := fakeTool(t, "echo '\tsignal: -95 dBm'\nsleep 5\n")
	src := &Source{Interface: "wlan0", Threshold: -90, Timeout: 100 * time.Millisecond, Binary: bin}

	start := time.Now()
	_, err := src.Collect(context.Background())
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Collect returned after %s, expected it to stop shortly after the timeout", elapsed)
	}
	if !errors.Is(err, sensor.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}
