package hayabusa

import (
	"fmt"

	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

// UnsupportedAggregationError reports an aggregation clause reaching the
// converter. Every aggregation function is unimplemented on purpose.
type UnsupportedAggregationError struct {
	Func sigma.AggregationFunc
}

func (e *UnsupportedAggregationError) Error() string {
	return fmt.Sprintf("aggregation operator not supported: %s", e.Func)
}

// UnsupportedModifierError reports a typed value whose modifier is not the
// regular-expression one.
type UnsupportedModifierError struct {
	Modifier string
}

func (e *UnsupportedModifierError) Error() string {
	return fmt.Sprintf("unsupported value modifier: %s", e.Modifier)
}

// MalformedValueError reports a map item value outside the known variants.
type MalformedValueError struct {
	Field string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed value for field %s", e.Field)
}

// MissingSelectionBlockError reports a value-less map item processed before
// any selection block was allocated under the current index.
type MissingSelectionBlockError struct {
	Name string
}

func (e *MissingSelectionBlockError) Error() string {
	return fmt.Sprintf("no selection block allocated for %s", e.Name)
}
