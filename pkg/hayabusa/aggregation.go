package hayabusa

import (
	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

// renderAggregation is the aggregation rejector: a nil clause renders to the
// empty string, any present clause fails naming its function. The switch
// enumerates every known kind explicitly; an out-of-range kind fails too
// rather than being skipped.
func renderAggregation(agg *sigma.Aggregation) (string, error) {
	if agg == nil {
		return "", nil
	}
	switch agg.Func {
	case sigma.AggCount:
		return "", &UnsupportedAggregationError{Func: sigma.AggCount}
	case sigma.AggMin:
		return "", &UnsupportedAggregationError{Func: sigma.AggMin}
	case sigma.AggMax:
		return "", &UnsupportedAggregationError{Func: sigma.AggMax}
	case sigma.AggAvg:
		return "", &UnsupportedAggregationError{Func: sigma.AggAvg}
	case sigma.AggSum:
		return "", &UnsupportedAggregationError{Func: sigma.AggSum}
	case sigma.AggNear:
		return "", &UnsupportedAggregationError{Func: sigma.AggNear}
	default:
		return "", &UnsupportedAggregationError{Func: agg.Func}
	}
}
