package grammar

import "slices"

// Aggregations applied when several input elements join onto one output
// element.
const (
	AggregateAvg     = "avg"
	AggregateSum     = "sum"
	AggregateMax     = "max"
	AggregateMin     = "min"
	AggregateCount   = "count"
	AggregateDiscard = "discard"
)

var aggregations = []string{AggregateAvg, AggregateSum, AggregateMax, AggregateMin, AggregateCount, AggregateDiscard}

// ValidAggregation reports whether op names a supported aggregation.
func ValidAggregation(op string) bool { return slices.Contains(aggregations, op) }

// Aggregate reduces values with op. An empty op means avg. Empty input
// yields 0. discard keeps the first value.
func Aggregate(op string, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch op {
	case AggregateSum:
		return sum(values)
	case AggregateMax:
		return slices.Max(values)
	case AggregateMin:
		return slices.Min(values)
	case AggregateCount:
		return float64(len(values))
	case AggregateDiscard:
		return values[0]
	default:
		return sum(values) / float64(len(values))
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
