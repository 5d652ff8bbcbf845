package stats

// Trend is the direction of a metric compared across two recent slices of
// its history.
type Trend int

const (
	// TrendStable means the metric changed by 20% or less.
	TrendStable Trend = iota
	// TrendImproving means the metric moved more than 20% in the good
	// direction.
	TrendImproving
	// TrendDegrading means the metric moved more than 20% in the bad
	// direction.
	TrendDegrading
)

// trendBand is the relative change that separates stable from a trend.
const trendBand = 0.2

// String returns the string representation of the trend.
func (t Trend) String() string {
	switch t {
	case TrendImproving:
		return "improving"
	case TrendDegrading:
		return "degrading"
	case TrendStable:
		return "stable"
	default:
		return "stable"
	}
}

// Direction compares a recent value against a previous one and classifies
// the movement. higherIsBetter selects the good direction: true for
// ratios like uptime, false for costs like response time. A zero previous
// value is treated as stable since no relative change can be computed.
func Direction(previous, recent float64, higherIsBetter bool) Trend {
	if previous == 0 {
		return TrendStable
	}

	change := (recent - previous) / previous
	if !higherIsBetter {
		change = -change
	}

	switch {
	case change > trendBand:
		return TrendImproving
	case change < -trendBand:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// SliceDirection splits values into an older and a newer half and compares
// their means via Direction. Fewer than four values is always stable.
func SliceDirection(values []float64, higherIsBetter bool) Trend {
	if len(values) < 4 {
		return TrendStable
	}
	mid := len(values) / 2
	return Direction(Mean(values[:mid]), Mean(values[mid:]), higherIsBetter)
}
