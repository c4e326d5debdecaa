package sigma

import (
	"fmt"
	"strings"
	"unicode"
)

// Selections holds the named selection subtrees of one detection section,
// in document order. Identifier references in the condition string resolve
// against it.
type Selections struct {
	names  []string
	byName map[string]*Condition
}

func NewSelections() *Selections {
	return &Selections{byName: make(map[string]*Condition)}
}

func (s *Selections) Add(name string, tree *Condition) {
	if _, ok := s.byName[name]; !ok {
		s.names = append(s.names, name)
	}
	s.byName[name] = tree
}

func (s *Selections) Get(name string) (*Condition, bool) {
	t, ok := s.byName[name]
	return t, ok
}

func (s *Selections) Names() []string { return append([]string(nil), s.names...) }

// ---------------- Tokens ----------------

type tokenKind int

const (
	tokIdentifier tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLeftParen
	tokRightParen
	tokOf
	tokThem
	tokAll
	tokNumber
	tokWildcard
)

type token struct {
	kind   tokenKind
	text   string
	number int
}

// tokenizeCondition scans the base condition (everything before the
// aggregation pipe). Keywords are recognized lower-case only; "AND" is an
// identifier.
func tokenizeCondition(cond string) ([]token, error) {
	toks := make([]token, 0, 8)
	i, n := 0, len(cond)

	for i < n {
		ch := cond[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			toks = append(toks, token{kind: tokLeftParen})
			i++
		case ch == ')':
			toks = append(toks, token{kind: tokRightParen})
			i++
		case ch >= '0' && ch <= '9':
			start := i
			for i < n && cond[i] >= '0' && cond[i] <= '9' {
				i++
			}
			num := 0
			for _, c := range cond[start:i] {
				num = num*10 + int(c-'0')
			}
			toks = append(toks, token{kind: tokNumber, number: num})
		case isIdentByte(ch) || ch == '_':
			start := i
			for i < n && (isIdentByte(cond[i]) || cond[i] == '_' || cond[i] == '*' || cond[i] >= '0' && cond[i] <= '9') {
				i++
			}
			ident := cond[start:i]
			switch ident {
			case "and":
				toks = append(toks, token{kind: tokAnd})
			case "or":
				toks = append(toks, token{kind: tokOr})
			case "not":
				toks = append(toks, token{kind: tokNot})
			case "of":
				toks = append(toks, token{kind: tokOf})
			case "them":
				toks = append(toks, token{kind: tokThem})
			case "all":
				toks = append(toks, token{kind: tokAll})
			default:
				if strings.ContainsRune(ident, '*') {
					toks = append(toks, token{kind: tokWildcard, text: ident})
				} else {
					toks = append(toks, token{kind: tokIdentifier, text: ident})
				}
			}
		default:
			return nil, fmt.Errorf("unexpected character in condition: %q", rune(ch))
		}
	}
	return toks, nil
}

// Non-ASCII bytes are accepted as identifier characters so multi-byte
// selection names tokenize as a unit.
func isIdentByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= 0x80
}

// ---------------- Parser ----------------

type conditionParser struct {
	tokens []token
	pos    int
	sels   *Selections
}

// ParseCondition parses a full condition string, resolving identifiers
// against sels and splitting off the aggregation pipe section when present.
func ParseCondition(cond string, sels *Selections) (*Condition, *Aggregation, error) {
	base, aggText, hasAgg := strings.Cut(cond, "|")

	var agg *Aggregation
	if hasAgg {
		parsed, err := parseAggregation(aggText)
		if err != nil {
			return nil, nil, err
		}
		agg = parsed
	}

	toks, err := tokenizeCondition(base)
	if err != nil {
		return nil, nil, err
	}
	if len(toks) == 0 {
		return nil, nil, fmt.Errorf("empty condition")
	}

	p := &conditionParser{tokens: toks, sels: sels}
	tree, err := p.parseOr()
	if err != nil {
		return nil, nil, err
	}
	if t := p.current(); t != nil {
		return nil, nil, fmt.Errorf("trailing tokens after condition")
	}
	return tree, agg, nil
}

func parseAggregation(text string) (*Aggregation, error) {
	trimmed := strings.TrimSpace(text)
	name := trimmed
	for i, c := range trimmed {
		if !unicode.IsLetter(c) {
			name = trimmed[:i]
			break
		}
	}
	switch strings.ToLower(name) {
	case "count":
		return &Aggregation{Func: AggCount, Raw: trimmed}, nil
	case "min":
		return &Aggregation{Func: AggMin, Raw: trimmed}, nil
	case "max":
		return &Aggregation{Func: AggMax, Raw: trimmed}, nil
	case "avg":
		return &Aggregation{Func: AggAvg, Raw: trimmed}, nil
	case "sum":
		return &Aggregation{Func: AggSum, Raw: trimmed}, nil
	case "near":
		return &Aggregation{Func: AggNear, Raw: trimmed}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation function: %q", name)
	}
}

func (p *conditionParser) current() *token {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *conditionParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// OR binds loosest.
func (p *conditionParser) parseOr() (*Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Condition{left}
	for {
		t := p.current()
		if t == nil || t.kind != tokOr {
			break
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return Or(children...), nil
}

func (p *conditionParser) parseAnd() (*Condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []*Condition{left}
	for {
		t := p.current()
		if t == nil || t.kind != tokAnd {
			break
		}
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return And(children...), nil
}

func (p *conditionParser) parseNot() (*Condition, error) {
	if t := p.current(); t != nil && t.kind == tokNot {
		p.advance()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return Not(operand), nil
	}
	return p.parsePrimary()
}

func (p *conditionParser) parsePrimary() (*Condition, error) {
	t := p.current()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of condition")
	}

	switch t.kind {
	case tokLeftParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r := p.current(); r == nil || r.kind != tokRightParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.advance()
		return expr, nil

	case tokIdentifier:
		name := t.text
		p.advance()
		tree, ok := p.sels.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown selection identifier: %s", name)
		}
		return tree, nil

	case tokNumber:
		count := t.number
		p.advance()
		if count != 1 {
			return nil, fmt.Errorf("only '1 of' is supported, got %d", count)
		}
		return p.parseOfTail(false)

	case tokAll:
		p.advance()
		return p.parseOfTail(true)

	default:
		return nil, fmt.Errorf("unexpected token in condition")
	}
}

// parseOfTail handles the "... of them" / "... of pattern*" tail shared by
// "1 of" and "all of".
func (p *conditionParser) parseOfTail(all bool) (*Condition, error) {
	if t := p.current(); t == nil || t.kind != tokOf {
		return nil, fmt.Errorf("expected 'of'")
	}
	p.advance()

	t := p.current()
	if t == nil {
		return nil, fmt.Errorf("expected 'them' or pattern after 'of'")
	}

	var names []string
	switch t.kind {
	case tokThem:
		p.advance()
		names = p.sels.names
	case tokWildcard, tokIdentifier:
		p.advance()
		for _, name := range p.sels.names {
			if matchIdentPattern(t.text, name) {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no selection matches pattern %q", t.text)
		}
	default:
		return nil, fmt.Errorf("expected 'them' or pattern after 'of'")
	}

	children := make([]*Condition, 0, len(names))
	for _, name := range names {
		tree, _ := p.sels.Get(name)
		children = append(children, tree)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	if all {
		return And(children...), nil
	}
	return Or(children...), nil
}

// matchIdentPattern matches a selection name against an identifier pattern
// where '*' matches any run of characters.
func matchIdentPattern(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}
