package hayabusa

import (
	"fmt"
	"strings"

	"github.com/Cyberappy/Hayabusa-setup/pkg/sigma"
)

// Options fixes the rendering surface of a Backend at construction time:
// combinator tokens, value templates and the list handling flag. Zero-value
// fields fall back to the defaults.
type Options struct {
	AndToken string
	OrToken  string
	NotToken string

	// SubExpression wraps boolean groups, ValueExpression renders scalar
	// values and ReExpression renders regular-expression values.
	SubExpression   string
	ValueExpression string
	ReExpression    string

	// MapListsSpecialHandling keeps a field with listed values in one
	// selection block instead of exploding it into OR-joined blocks.
	MapListsSpecialHandling *bool
}

func DefaultOptions() Options {
	yes := true
	return Options{
		AndToken:                " and ",
		OrToken:                 " or ",
		NotToken:                " not ",
		SubExpression:           "(%s)",
		ValueExpression:         "%s",
		ReExpression:            "%s",
		MapListsSpecialHandling: &yes,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.AndToken == "" {
		o.AndToken = def.AndToken
	}
	if o.OrToken == "" {
		o.OrToken = def.OrToken
	}
	if o.NotToken == "" {
		o.NotToken = def.NotToken
	}
	if o.SubExpression == "" {
		o.SubExpression = def.SubExpression
	}
	if o.ValueExpression == "" {
		o.ValueExpression = def.ValueExpression
	}
	if o.ReExpression == "" {
		o.ReExpression = def.ReExpression
	}
	if o.MapListsSpecialHandling == nil {
		o.MapListsSpecialHandling = def.MapListsSpecialHandling
	}
	return o
}

// Backend converts parsed Sigma rules into the normalized rule format.
// It is stateless across conversions: every Convert call starts with a
// fresh selection registry and counter.
type Backend struct {
	opts Options
}

func New(opts Options) *Backend {
	return &Backend{opts: opts.withDefaults()}
}

// Convert renders one rule to its output document text.
func (b *Backend) Convert(rule *sigma.Rule) ([]byte, error) {
	c := newConversion(b.opts)

	fragment, err := c.render(rule.Condition)
	if err != nil {
		return nil, err
	}
	if _, err := renderAggregation(rule.Aggregation); err != nil {
		return nil, err
	}
	return c.assemble(rule, []string{fragment})
}

// pair is one field/value entry of a selection block. A nil Value is an
// existence match.
type pair struct {
	field string
	value any
}

// conversion owns the mutable state of a single Convert call: the selection
// counter and the registry, in insertion order.
type conversion struct {
	opts   Options
	index  int
	names  []string
	blocks map[string][]pair
}

func newConversion(opts Options) *conversion {
	return &conversion{opts: opts, blocks: make(map[string][]pair)}
}

func (c *conversion) currentName() string {
	return fmt.Sprintf("SELECTION_%d", c.index)
}

// ensureBlock registers name in the registry, keeping first-seen order.
func (c *conversion) ensureBlock(name string) {
	if _, ok := c.blocks[name]; !ok {
		c.names = append(c.names, name)
		c.blocks[name] = nil
	}
}

func (c *conversion) appendPair(name, field string, value any) {
	c.blocks[name] = append(c.blocks[name], pair{field: field, value: value})
}

// render walks a condition node and returns its query fragment, registering
// selection blocks as a side effect.
func (c *conversion) render(node *sigma.Condition) (string, error) {
	switch node.Kind {
	case sigma.NodeAnd:
		return c.renderJoin(node.Children, c.opts.AndToken)
	case sigma.NodeOr, sigma.NodeList:
		return c.renderJoin(node.Children, c.opts.OrToken)
	case sigma.NodeNot:
		child, err := c.render(node.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(c.opts.SubExpression, c.opts.NotToken+child), nil
	case sigma.NodeItem:
		return c.renderItem(node.Field, node.Value)
	case sigma.NodeValue:
		return c.renderValue(node.Value)
	default:
		return "", &MalformedValueError{Field: node.Field}
	}
}

func (c *conversion) renderJoin(children []*sigma.Condition, token string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		frag, err := c.render(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	return fmt.Sprintf(c.opts.SubExpression, strings.Join(parts, token)), nil
}

// renderItem dispatches on the value shape of a map item. Scalars reuse the
// selection block under the current counter; sequences advance the counter
// and open a new block. The asymmetry is intentional: listed values of one
// field stay together as a single block entry instead of fanning out into
// separate OR-joined blocks.
func (c *conversion) renderItem(field string, value sigma.Value) (string, error) {
	switch value.Kind {
	case sigma.ScalarValue:
		name := c.currentName()
		c.ensureBlock(name)
		f, v := c.rewriteWildcards(field, value.Scalar)
		c.appendPair(name, f, v)
		return name, nil

	case sigma.AbsentValue:
		name := c.currentName()
		if _, ok := c.blocks[name]; !ok {
			return "", &MissingSelectionBlockError{Name: name}
		}
		c.appendPair(name, field, nil)
		return name, nil

	case sigma.SequenceValue:
		if *c.opts.MapListsSpecialHandling {
			return c.renderListItem(field, value.Seq)
		}
		// Exploded form: each element rendered as its own scalar item,
		// OR-joined.
		parts := make([]string, 0, len(value.Seq))
		for _, elem := range value.Seq {
			frag, err := c.renderItem(field, elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, frag)
		}
		return fmt.Sprintf(c.opts.SubExpression, strings.Join(parts, c.opts.OrToken)), nil

	case sigma.TypedValue:
		return c.renderTypedItem(field, value)

	default:
		return "", &MalformedValueError{Field: field}
	}
}

// renderListItem allocates a new selection block for a field with listed
// values and records the whole list as one entry.
func (c *conversion) renderListItem(field string, elems []sigma.Value) (string, error) {
	c.index++
	name := c.currentName()
	c.ensureBlock(name)

	values := make([]any, 0, len(elems))
	for _, elem := range elems {
		v, err := c.renderElement(elem)
		if err != nil {
			return "", err
		}
		values = append(values, v)
	}
	c.appendPair(name, field, values)
	return name, nil
}

// renderElement renders one element of a listed value. Scalars keep their
// native type so integers stay integers in the output document.
func (c *conversion) renderElement(elem sigma.Value) (any, error) {
	switch elem.Kind {
	case sigma.ScalarValue:
		return c.renderValueScalar(elem.Scalar), nil
	case sigma.AbsentValue:
		return nil, nil
	case sigma.TypedValue:
		if elem.Modifier != "re" {
			return nil, &UnsupportedModifierError{Modifier: elem.Modifier}
		}
		return fmt.Sprintf(c.opts.ReExpression, elem.Pattern), nil
	case sigma.SequenceValue:
		nested := make([]any, 0, len(elem.Seq))
		for _, sub := range elem.Seq {
			v, err := c.renderElement(sub)
			if err != nil {
				return nil, err
			}
			nested = append(nested, v)
		}
		return nested, nil
	default:
		return nil, &MalformedValueError{}
	}
}

// renderTypedItem handles typed values on a map item. Only the
// regular-expression modifier exists in the output format.
func (c *conversion) renderTypedItem(field string, value sigma.Value) (string, error) {
	if value.Modifier != "re" {
		return "", &UnsupportedModifierError{Modifier: value.Modifier}
	}
	name := c.currentName()
	c.ensureBlock(name)
	c.appendPair(name, field+"|re", fmt.Sprintf(c.opts.ReExpression, value.Pattern))
	return name, nil
}

func (c *conversion) renderValue(value sigma.Value) (string, error) {
	switch value.Kind {
	case sigma.ScalarValue:
		return fmt.Sprintf(c.opts.ValueExpression, fmt.Sprint(value.Scalar)), nil
	case sigma.TypedValue:
		if value.Modifier != "re" {
			return "", &UnsupportedModifierError{Modifier: value.Modifier}
		}
		return fmt.Sprintf(c.opts.ReExpression, value.Pattern), nil
	default:
		return "", &MalformedValueError{}
	}
}

func (c *conversion) renderValueScalar(scalar any) any {
	if s, ok := scalar.(string); ok {
		return fmt.Sprintf(c.opts.ValueExpression, s)
	}
	return scalar
}

// rewriteWildcards folds boundary wildcards of a string value into a field
// suffix modifier. An embedded wildcard leaves both field and value
// untouched; escaping is deferred to the consumer of the output.
func (c *conversion) rewriteWildcards(field string, scalar any) (string, any) {
	s, ok := scalar.(string)
	if !ok {
		return field, scalar
	}

	leading := strings.HasPrefix(s, "*")
	trailing := strings.HasSuffix(s, "*")

	// A lone "*" matches anything: keep the field as an existence entry.
	if s == "*" {
		return field, nil
	}

	inner := s
	if leading {
		inner = inner[1:]
	}
	if trailing {
		inner = inner[:len(inner)-1]
	}
	if strings.Contains(inner, "*") {
		return field, fmt.Sprintf(c.opts.ValueExpression, s)
	}

	switch {
	case leading && trailing:
		return field + "|contains", fmt.Sprintf(c.opts.ValueExpression, inner)
	case trailing:
		return field + "|startswith", fmt.Sprintf(c.opts.ValueExpression, inner)
	case leading:
		return field + "|endswith", fmt.Sprintf(c.opts.ValueExpression, inner)
	default:
		return field, fmt.Sprintf(c.opts.ValueExpression, s)
	}
}
