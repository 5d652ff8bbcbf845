package metrics

import (
	"time"

	"github.com/jonwraymond/runtimeops/stats"
)

// Kind is the kind of a custom metric.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
	KindSummary
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindSummary:
		return "summary"
	default:
		return "counter"
	}
}

// Metric is a single custom metric sample.
type Metric struct {
	Name      string            `json:"name"`
	Kind      Kind              `json:"kind"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Series is the aggregation of one metric's samples over a lookup window.
type Series struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"kind"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// aggregate folds raw samples into a Series.
func aggregate(name string, kind Kind, values []float64) Series {
	s := Series{Name: name, Kind: kind, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	s.Min = values[0]
	s.Max = values[0]
	for _, v := range values {
		s.Sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = s.Sum / float64(len(values))
	s.P50 = stats.Percentile(values, 0.50)
	s.P90 = stats.Percentile(values, 0.90)
	s.P95 = stats.Percentile(values, 0.95)
	s.P99 = stats.Percentile(values, 0.99)
	return s
}

// customSeries retains raw samples for one name+kind, capped at maxSamples
// with a retain-most-recent policy.
type customSeries struct {
	kind    Kind
	max     int
	samples []Metric
}

func (cs *customSeries) add(m Metric) {
	if len(cs.samples) >= cs.max {
		copy(cs.samples, cs.samples[1:])
		cs.samples = cs.samples[:len(cs.samples)-1]
	}
	cs.samples = append(cs.samples, m)
}

// valuesSince returns the sample values at or after cutoff.
func (cs *customSeries) valuesSince(cutoff time.Time) []float64 {
	out := make([]float64, 0, len(cs.samples))
	for _, m := range cs.samples {
		if !m.Timestamp.Before(cutoff) {
			out = append(out, m.Value)
		}
	}
	return out
}
