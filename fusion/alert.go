package fusion

import "fmt"

type AlertKind string

const (
	AlertBurst      AlertKind = "burst"
	AlertLowTraffic AlertKind = "low_traffic"
)

// AlertRule enables an alert and sets the observation count it compares against.
type AlertRule struct {
	Enabled   bool
	Threshold int
}

// Alert is raised for a cycle whose observation count crossed a threshold.
type Alert struct {
	Kind      AlertKind
	Count     int
	Threshold int
}

func (a Alert) String() string {
	switch a.Kind {
	case AlertBurst:
		return fmt.Sprintf("burst of traffic: %d observations above threshold %d", a.Count, a.Threshold)
	case AlertLowTraffic:
		return fmt.Sprintf("low traffic: %d observations below threshold %d", a.Count, a.Threshold)
	}
	return fmt.Sprintf("%s: %d observations (threshold %d)", a.Kind, a.Count, a.Threshold)
}

// EvaluateAlerts compares the combined observation count n of a cycle against
// the burst and low-traffic rules. Both comparisons are strict.
func EvaluateAlerts(n int, burst, lowTraffic AlertRule) []Alert {
	var alerts []Alert
	if burst.Enabled && n > burst.Threshold {
		alerts = append(alerts, Alert{Kind: AlertBurst, Count: n, Threshold: burst.Threshold})
	}
	if lowTraffic.Enabled && n < lowTraffic.Threshold {
		alerts = append(alerts, Alert{Kind: AlertLowTraffic, Count: n, Threshold: lowTraffic.Threshold})
	}
	return alerts
}
