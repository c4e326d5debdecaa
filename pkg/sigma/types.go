package sigma

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeKind discriminates the variants of a condition tree node.
type NodeKind int

const (
	NodeAnd NodeKind = iota
	NodeOr
	NodeNot
	NodeList
	NodeItem
	NodeValue
)

// Condition is one node of a parsed detection condition tree. The renderer
// only reads these; they are built once by the parser (or by hand in tests)
// and never mutated afterwards.
type Condition struct {
	Kind NodeKind

	// And / Or / List
	Children []*Condition

	// Not
	Operand *Condition

	// Item (field/value match); NodeValue uses Value only.
	Field string
	Value Value
}

// ValueKind discriminates the shapes a map item value can take.
type ValueKind int

const (
	ScalarValue ValueKind = iota
	SequenceValue
	TypedValue
	AbsentValue
)

// Value is the tagged union carried by an Item node.
type Value struct {
	Kind ValueKind

	// ScalarValue: string or int
	Scalar any

	// SequenceValue
	Seq []Value

	// TypedValue
	Modifier string
	Pattern  string
}

func And(children ...*Condition) *Condition {
	return &Condition{Kind: NodeAnd, Children: children}
}

func Or(children ...*Condition) *Condition {
	return &Condition{Kind: NodeOr, Children: children}
}

func Not(operand *Condition) *Condition {
	return &Condition{Kind: NodeNot, Operand: operand}
}

func List(children ...*Condition) *Condition {
	return &Condition{Kind: NodeList, Children: children}
}

func Item(field string, value Value) *Condition {
	return &Condition{Kind: NodeItem, Field: field, Value: value}
}

func ValueLeaf(value Value) *Condition {
	return &Condition{Kind: NodeValue, Value: value}
}

func Str(s string) Value { return Value{Kind: ScalarValue, Scalar: s} }

func Int(i int) Value { return Value{Kind: ScalarValue, Scalar: i} }

func Seq(vs ...Value) Value { return Value{Kind: SequenceValue, Seq: vs} }

func Absent() Value { return Value{Kind: AbsentValue} }

// Typed wraps a raw value with a modifier identifier, e.g. "re" for
// regular-expression interpretation.
func Typed(modifier, pattern string) Value {
	return Value{Kind: TypedValue, Modifier: modifier, Pattern: pattern}
}

func Regex(pattern string) Value { return Typed("re", pattern) }

// AggregationFunc enumerates the aggregation functions the Sigma condition
// grammar knows about. None of them are implemented by the converter.
type AggregationFunc int

const (
	AggCount AggregationFunc = iota
	AggMin
	AggMax
	AggAvg
	AggSum
	AggNear
)

func (f AggregationFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	case AggSum:
		return "SUM"
	case AggNear:
		return "NEAR"
	default:
		return fmt.Sprintf("AGGREGATION(%d)", int(f))
	}
}

// Aggregation is the pipe section of a condition, e.g. "count(uid) > 5".
// Raw keeps the section verbatim for error reporting.
type Aggregation struct {
	Func AggregationFunc
	Raw  string
}

// Rule is one parsed detection rule: the original document (key order
// preserved), the decoded metadata the converter needs, and the condition
// tree with its optional aggregation clause.
type Rule struct {
	ID    string
	Title string
	Level string

	// Document is the mapping node of the source YAML document.
	Document *yaml.Node

	Condition   *Condition
	Aggregation *Aggregation
}
