package parser

import (
	"fmt"
	"strconv"
	"strings"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// Parse parses a SPARQL query.
func Parse(input string) (*Query, error) {
	return newParser(input).parseQuery()
}

type parser struct {
	input    string
	pos      int
	length   int
	prefixes map[string]string
	base     string
	pathVars int
}

func newParser(input string) *parser {
	return &parser{
		input:    input,
		length:   len(input),
		prefixes: make(map[string]string),
	}
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	switch {
	case p.matchKeyword("SELECT"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &Query{Form: FormSelect, Select: sel}, nil
	case p.matchKeyword("CONSTRUCT"):
		con, err := p.parseConstruct()
		if err != nil {
			return nil, err
		}
		return &Query{Form: FormConstruct, Construct: con}, nil
	case p.matchKeyword("ASK"):
		ask, err := p.parseAsk()
		if err != nil {
			return nil, err
		}
		return &Query{Form: FormAsk, Ask: ask}, nil
	default:
		return nil, p.errorf("expected SELECT, CONSTRUCT or ASK")
	}
}

// parsePrologue consumes leading PREFIX and BASE declarations.
func (p *parser) parsePrologue() error {
	for {
		switch {
		case p.matchKeyword("PREFIX"):
			if err := p.parsePrefixDecl(); err != nil {
				return err
			}
		case p.matchKeyword("BASE"):
			iri, err := p.parseIRIRef()
			if err != nil {
				return err
			}
			p.base = iri
		default:
			return nil
		}
	}
}

func (p *parser) parsePrefixDecl() error {
	p.skipWhitespace()
	start := p.pos
	for p.pos < p.length && p.input[p.pos] != ':' && !isWhitespace(p.input[p.pos]) {
		p.pos++
	}
	prefix := p.input[start:p.pos]
	if p.peek() != ':' {
		return p.errorf("expected ':' in PREFIX declaration")
	}
	p.advance()
	iri, err := p.parseIRIRef()
	if err != nil {
		return err
	}
	p.prefixes[prefix] = p.resolveIRI(iri)
	return nil
}

func (p *parser) parseSelect() (*SelectQuery, error) {
	q := &SelectQuery{}
	if p.matchKeyword("DISTINCT") {
		q.Distinct = true
	}

	items, err := p.parseProjection()
	if err != nil {
		return nil, err
	}
	q.Items = items

	if !p.matchKeyword("WHERE") {
		return nil, p.errorf("expected WHERE clause")
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if p.matchKeyword("GROUP") {
		if !p.matchKeyword("BY") {
			return nil, p.errorf("expected BY after GROUP")
		}
		for {
			p.skipWhitespace()
			if p.peek() != '?' && p.peek() != '$' {
				break
			}
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			q.GroupBy = append(q.GroupBy, v)
		}
		if len(q.GroupBy) == 0 {
			return nil, p.errorf("expected at least one GROUP BY variable")
		}
	}

	if p.matchKeyword("ORDER") {
		if !p.matchKeyword("BY") {
			return nil, p.errorf("expected BY after ORDER")
		}
		conds, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		q.OrderBy = conds
	}

	// LIMIT and OFFSET may appear in either order.
	for {
		if p.matchKeyword("LIMIT") {
			n, err := p.parseInteger()
			if err != nil {
				return nil, err
			}
			q.Limit = &n
			continue
		}
		if p.matchKeyword("OFFSET") {
			n, err := p.parseInteger()
			if err != nil {
				return nil, err
			}
			q.Offset = &n
			continue
		}
		break
	}

	p.skipWhitespace()
	if p.pos < p.length {
		return nil, p.errorf("unexpected trailing input")
	}
	return q, nil
}

func (p *parser) parseAsk() (*AskQuery, error) {
	p.matchKeyword("WHERE") // optional for ASK
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.pos < p.length {
		return nil, p.errorf("unexpected trailing input")
	}
	return &AskQuery{Where: where}, nil
}

func (p *parser) parseConstruct() (*ConstructQuery, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{' to start CONSTRUCT template")
	}
	p.advance()

	var template []*TriplePattern
	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.advance()
			break
		}
		if p.pos >= p.length {
			return nil, p.errorf("unterminated CONSTRUCT template")
		}
		tps, err := p.parseTriplePattern()
		if err != nil {
			return nil, err
		}
		if len(tps) != 1 {
			return nil, p.errorf("property paths are not allowed in CONSTRUCT templates")
		}
		template = append(template, tps[0])
		p.skipWhitespace()
		if p.peek() == '.' {
			p.advance()
		}
	}

	if !p.matchKeyword("WHERE") {
		return nil, p.errorf("expected WHERE clause")
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.pos < p.length {
		return nil, p.errorf("unexpected trailing input")
	}
	return &ConstructQuery{Template: template, Where: where}, nil
}

// parseProjection parses the SELECT item list: *, variables, or
// parenthesized aggregate aliases.
func (p *parser) parseProjection() ([]*SelectItem, error) {
	p.skipWhitespace()
	if p.peek() == '*' {
		p.advance()
		return nil, nil
	}

	var items []*SelectItem
	for {
		p.skipWhitespace()
		switch {
		case p.peek() == '?' || p.peek() == '$':
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			items = append(items, &SelectItem{Variable: v})
		case p.peek() == '(':
			item, err := p.parseAggregateItem()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		default:
			if len(items) == 0 {
				return nil, p.errorf("expected projection variable or '*'")
			}
			return items, nil
		}
	}
}

// parseAggregateItem parses (AGG(?x) AS ?alias).
func (p *parser) parseAggregateItem() (*SelectItem, error) {
	p.advance() // '('

	agg, err := p.parseAggregateExpr()
	if err != nil {
		return nil, err
	}
	if !p.matchKeyword("AS") {
		return nil, p.errorf("expected AS after aggregate expression")
	}
	p.skipWhitespace()
	alias, err := p.parseVariable()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, p.errorf("expected ')' to close aggregate alias")
	}
	p.advance()
	return &SelectItem{Aggregate: agg, Alias: alias}, nil
}

func (p *parser) parseAggregateExpr() (*AggregateExpr, error) {
	var fn AggregateFunc
	switch {
	case p.matchKeyword("COUNT"):
		fn = AggCount
	case p.matchKeyword("SUM"):
		fn = AggSum
	case p.matchKeyword("AVG"):
		fn = AggAvg
	case p.matchKeyword("MIN"):
		fn = AggMin
	case p.matchKeyword("MAX"):
		fn = AggMax
	case p.matchKeyword("GROUP_CONCAT"):
		fn = AggGroupConcat
	default:
		return nil, p.errorf("expected aggregate function")
	}

	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, p.errorf("expected '(' after aggregate function")
	}
	p.advance()

	agg := &AggregateExpr{Func: fn}
	if p.matchKeyword("DISTINCT") {
		agg.Distinct = true
	}

	p.skipWhitespace()
	if p.peek() == '*' {
		if fn != AggCount {
			return nil, p.errorf("'*' is only valid in COUNT")
		}
		p.advance()
		agg.Star = true
	} else {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		agg.Arg = v
	}

	// GROUP_CONCAT(?x; SEPARATOR="...")
	p.skipWhitespace()
	if p.peek() == ';' {
		p.advance()
		if !p.matchKeyword("SEPARATOR") {
			return nil, p.errorf("expected SEPARATOR after ';'")
		}
		p.skipWhitespace()
		if p.peek() != '=' {
			return nil, p.errorf("expected '=' after SEPARATOR")
		}
		p.advance()
		p.skipWhitespace()
		lit, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		agg.Separator = lit.Value
	}

	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, p.errorf("expected ')' to close aggregate call")
	}
	p.advance()
	return agg, nil
}

// parseGroupGraphPattern parses { ... } with nested groups, OPTIONAL,
// UNION, MINUS, FILTER and BIND, preserving source order.
func (p *parser) parseGroupGraphPattern() (*GraphPattern, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{' to start group graph pattern")
	}
	p.advance()

	group := &GraphPattern{Kind: KindGroup}
	for {
		p.skipWhitespace()
		if p.pos >= p.length {
			return nil, p.errorf("unbalanced braces: missing '}'")
		}
		if p.peek() == '}' {
			p.advance()
			return group, nil
		}

		switch {
		case p.matchKeyword("OPTIONAL"):
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			child.Kind = KindOptional
			group.Elements = append(group.Elements, Element{Child: child})

		case p.matchKeyword("MINUS"):
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			child.Kind = KindMinus
			group.Elements = append(group.Elements, Element{Child: child})

		case p.matchKeyword("FILTER"):
			filter, err := p.parseFilter()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, Element{Filter: filter})

		case p.matchKeyword("BIND"):
			bind, err := p.parseBind()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, Element{Bind: bind})

		case p.peek() == '{':
			child, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			// A braced group may start a UNION chain.
			for p.matchKeyword("UNION") {
				right, err := p.parseGroupGraphPattern()
				if err != nil {
					return nil, err
				}
				child = &GraphPattern{
					Kind: KindUnion,
					Elements: []Element{
						{Child: child},
						{Child: right},
					},
				}
			}
			group.Elements = append(group.Elements, Element{Child: child})

		default:
			tps, err := p.parseTriplePattern()
			if err != nil {
				return nil, err
			}
			for _, tp := range tps {
				group.Elements = append(group.Elements, Element{Triple: tp})
			}
			p.skipWhitespace()
			if p.peek() == '.' {
				p.advance()
			}
		}
	}
}

func (p *parser) parseFilter() (*Filter, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, p.errorf("expected '(' after FILTER")
	}
	p.advance()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, p.errorf("expected ')' to close FILTER expression")
	}
	p.advance()
	return &Filter{Expression: expr}, nil
}

func (p *parser) parseBind() (*Bind, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, p.errorf("expected '(' after BIND")
	}
	p.advance()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.matchKeyword("AS") {
		return nil, p.errorf("expected AS in BIND")
	}
	p.skipWhitespace()
	v, err := p.parseVariable()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, p.errorf("expected ')' to close BIND")
	}
	p.advance()
	return &Bind{Expression: expr, Variable: v}, nil
}

// parseTriplePattern parses one triple pattern. A sequence property path
// in the predicate position (p1/p2/.../pn) desugars into a chain of
// patterns linked by generated intermediate variables.
func (p *parser) parseTriplePattern() ([]*TriplePattern, error) {
	subject, err := p.parseTermOrVariable(false)
	if err != nil {
		return nil, err
	}
	predicates := []*TermOrVariable{}
	for {
		predicate, err := p.parseTermOrVariable(true)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, predicate)
		p.skipWhitespace()
		if p.peek() != '/' {
			break
		}
		p.advance()
	}
	object, err := p.parseTermOrVariable(false)
	if err != nil {
		return nil, err
	}

	if len(predicates) == 1 {
		return []*TriplePattern{{Subject: *subject, Predicate: *predicates[0], Object: *object}}, nil
	}

	for _, pred := range predicates {
		if pred.IsVariable() {
			return nil, p.errorf("property path elements must be IRIs")
		}
	}
	patterns := make([]*TriplePattern, 0, len(predicates))
	prev := subject
	for i, pred := range predicates {
		next := object
		if i < len(predicates)-1 {
			next = &TermOrVariable{Variable: p.freshPathVariable()}
		}
		patterns = append(patterns, &TriplePattern{Subject: *prev, Predicate: *pred, Object: *next})
		prev = next
	}
	return patterns, nil
}

func (p *parser) freshPathVariable() *Variable {
	p.pathVars++
	return &Variable{Name: fmt.Sprintf("%s%d", pathVarPrefix, p.pathVars)}
}

// parseTermOrVariable parses a variable or a concrete term. In predicate
// position the keyword 'a' abbreviates rdf:type.
func (p *parser) parseTermOrVariable(predicatePosition bool) (*TermOrVariable, error) {
	p.skipWhitespace()
	ch := p.peek()

	switch {
	case ch == '?' || ch == '$':
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Variable: v}, nil

	case ch == '<':
		value, err := p.parseIRIRef()
		if err != nil {
			return nil, err
		}
		iri, err := rdf.NewIRI(p.resolveIRI(value))
		if err != nil {
			return nil, p.errorf("invalid IRI <%s>", value)
		}
		return &TermOrVariable{Term: iri}, nil

	case ch == '"' || ch == '\'':
		lit, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: lit}, nil

	case ch == '_':
		bn, err := p.parseBlankNode()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: bn}, nil

	case ch >= '0' && ch <= '9' || ch == '-' || ch == '+':
		return p.parseNumericTerm()

	case predicatePosition && ch == 'a' && p.atKeywordBoundary(p.pos+1):
		p.advance()
		return &TermOrVariable{Term: rdf.RDFType}, nil

	default:
		if p.matchKeywordAt("true") {
			return &TermOrVariable{Term: rdf.NewBooleanLiteral(true)}, nil
		}
		if p.matchKeywordAt("false") {
			return &TermOrVariable{Term: rdf.NewBooleanLiteral(false)}, nil
		}
		if isPNameStart(ch) || ch == ':' {
			value, err := p.parsePrefixedName()
			if err != nil {
				return nil, err
			}
			iri, err := rdf.NewIRI(value)
			if err != nil {
				return nil, p.errorf("invalid IRI <%s>", value)
			}
			return &TermOrVariable{Term: iri}, nil
		}
		if p.pos >= p.length {
			return nil, p.errorf("unexpected end of input in triple pattern")
		}
		return nil, p.errorf("unexpected character %q in triple pattern", ch)
	}
}

func (p *parser) parseVariable() (*Variable, error) {
	if p.peek() != '?' && p.peek() != '$' {
		return nil, p.errorf("expected variable starting with '?' or '$'")
	}
	p.advance()
	name := p.readWhile(isNameChar)
	if name == "" {
		return nil, p.errorf("invalid variable name")
	}
	return &Variable{Name: name}, nil
}

func (p *parser) parseIRIRef() (string, error) {
	p.skipWhitespace()
	if p.peek() != '<' {
		return "", p.errorf("expected '<' to start IRI")
	}
	p.advance()
	value := p.readWhile(func(ch byte) bool { return ch != '>' })
	if p.peek() != '>' {
		return "", p.errorf("expected '>' to end IRI")
	}
	p.advance()
	return value, nil
}

func (p *parser) parsePrefixedName() (string, error) {
	start := p.pos
	for p.pos < p.length && isNameChar(p.input[p.pos]) {
		p.pos++
	}
	prefix := p.input[start:p.pos]
	if p.peek() != ':' {
		return "", p.errorf("expected ':' in prefixed name")
	}
	p.advance()
	local := p.readWhile(isNameChar)

	ns, ok := p.prefixes[prefix]
	if !ok {
		return "", p.errorf("undefined prefix %q", prefix)
	}
	return ns + local, nil
}

func (p *parser) parseStringLiteral() (*rdf.Literal, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return nil, p.errorf("expected quote to start string literal")
	}
	p.advance()

	var sb strings.Builder
	for p.pos < p.length && p.input[p.pos] != quote {
		ch := p.input[p.pos]
		if ch == '\\' && p.pos+1 < p.length {
			p.pos++
			switch p.input[p.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '"', '\'':
				sb.WriteByte(p.input[p.pos])
			default:
				return nil, p.errorf("invalid escape sequence '\\%c'", p.input[p.pos])
			}
			p.pos++
			continue
		}
		sb.WriteByte(ch)
		p.pos++
	}
	if p.peek() != quote {
		return nil, p.errorf("unterminated string literal")
	}
	p.advance()
	value := sb.String()

	// Optional language tag or datatype.
	if p.peek() == '@' {
		p.advance()
		lang := p.readWhile(func(ch byte) bool {
			return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '-'
		})
		if lang == "" {
			return nil, p.errorf("empty language tag")
		}
		return rdf.NewLangLiteral(value, lang), nil
	}
	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		var dtValue string
		var err error
		if p.peek() == '<' {
			dtValue, err = p.parseIRIRef()
		} else {
			dtValue, err = p.parsePrefixedName()
		}
		if err != nil {
			return nil, err
		}
		dt, err := rdf.NewIRI(p.resolveIRI(dtValue))
		if err != nil {
			return nil, p.errorf("invalid datatype IRI <%s>", dtValue)
		}
		return rdf.NewTypedLiteral(value, dt), nil
	}
	return rdf.NewLiteral(value), nil
}

func (p *parser) parseBlankNode() (*rdf.BlankNode, error) {
	if !strings.HasPrefix(p.input[p.pos:], "_:") {
		return nil, p.errorf("expected '_:' to start blank node")
	}
	p.pos += 2
	id := p.readWhile(isNameChar)
	if id == "" {
		return nil, p.errorf("empty blank node id")
	}
	bn, err := rdf.NewBlankNode(id)
	if err != nil {
		return nil, p.errorf("invalid blank node id %q", id)
	}
	return bn, nil
}

func (p *parser) parseNumericTerm() (*TermOrVariable, error) {
	lit, err := p.parseNumericLiteral()
	if err != nil {
		return nil, err
	}
	return &TermOrVariable{Term: lit}, nil
}

func (p *parser) parseNumericLiteral() (*rdf.Literal, error) {
	start := p.pos
	if p.peek() == '-' || p.peek() == '+' {
		p.advance()
	}
	digits := p.readWhile(func(ch byte) bool {
		return ch >= '0' && ch <= '9' || ch == '.' || ch == 'e' || ch == 'E'
	})
	if digits == "" {
		return nil, p.errorf("expected numeric literal")
	}
	text := p.input[start:p.pos]
	if !strings.ContainsAny(text, ".eE") {
		if _, err := strconv.ParseInt(text, 10, 64); err == nil {
			return rdf.NewTypedLiteral(text, rdf.XSDInteger), nil
		}
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return nil, p.errorf("invalid numeric literal %q", text)
	}
	return rdf.NewTypedLiteral(text, rdf.XSDDouble), nil
}

func (p *parser) parseOrderBy() ([]*OrderCondition, error) {
	var conds []*OrderCondition
	for {
		p.skipWhitespace()

		ascending := true
		wrapped := false
		if p.matchKeyword("DESC") {
			ascending = false
			wrapped = true
		} else if p.matchKeyword("ASC") {
			wrapped = true
		}
		if wrapped {
			p.skipWhitespace()
			if p.peek() != '(' {
				return nil, p.errorf("expected '(' after ASC/DESC")
			}
			p.advance()
		}

		p.skipWhitespace()
		if p.peek() != '?' && p.peek() != '$' {
			if wrapped {
				return nil, p.errorf("expected variable in ORDER BY condition")
			}
			break
		}
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		if wrapped {
			p.skipWhitespace()
			if p.peek() != ')' {
				return nil, p.errorf("expected ')' to close ORDER BY condition")
			}
			p.advance()
		}
		conds = append(conds, &OrderCondition{Variable: v, Ascending: ascending})
	}
	if len(conds) == 0 {
		return nil, p.errorf("expected at least one ORDER BY condition")
	}
	return conds, nil
}

func (p *parser) parseInteger() (int, error) {
	p.skipWhitespace()
	digits := p.readWhile(func(ch byte) bool { return ch >= '0' && ch <= '9' })
	if digits == "" {
		return 0, p.errorf("expected integer")
	}
	return strconv.Atoi(digits)
}

// Expression parsing, precedence-climbing:
//
//	Expression     -> Or
//	Or             -> And ( '||' And )*
//	And            -> Comparison ( '&&' Comparison )*
//	Comparison     -> Additive ( compareOp Additive )?
//	Additive       -> Multiplicative ( ('+'|'-') Multiplicative )*
//	Multiplicative -> Unary ( ('*'|'/') Unary )*
//	Unary          -> ('!'|'-')? Primary
//	Primary        -> Variable | Term | FunctionCall | '(' Expression ')'
func (p *parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchOperator("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpOr, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.matchOperator("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpAnd, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for _, op := range [...]struct {
		text string
		op   Operator
	}{
		{"<=", OpLessThanOrEqual},
		{">=", OpGreaterThanOrEqual},
		{"!=", OpNotEqual},
		{"=", OpEqual},
		{"<", OpLessThan},
		{">", OpGreaterThan},
	} {
		if p.matchOperator(op.text) {
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpression{Left: left, Operator: op.op, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		if p.matchOperator("+") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpAdd, Right: right}
			continue
		}
		if p.matchOperator("-") {
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpSubtract, Right: right}
			continue
		}
		return left, nil
	}
}

func (p *parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if p.matchOperator("*") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpMultiply, Right: right}
			continue
		}
		if p.matchOperator("/") {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpression{Left: left, Operator: OpDivide, Right: right}
			continue
		}
		return left, nil
	}
}

func (p *parser) parseUnary() (Expression, error) {
	p.skipWhitespace()
	if p.peek() == '!' && !strings.HasPrefix(p.input[p.pos:], "!=") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNot, Operand: operand}, nil
	}
	if p.peek() == '-' {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNegate, Operand: operand}, nil
	}
	return p.parsePrimary()
}

var builtinFunctions = map[string]int{
	"REGEX":     3, // max arity; REGEX accepts 2 or 3
	"BOUND":     1,
	"STR":       1,
	"LANG":      1,
	"DATATYPE":  1,
	"ISNUMERIC": 1,
	"ISIRI":     1,
	"ISLITERAL": 1,
	"ISBLANK":   1,
	"ABS":       1,
	"CEIL":      1,
	"FLOOR":     1,
	"ROUND":     1,
	"STRLEN":    1,
	"UCASE":     1,
	"LCASE":     1,
	"CONTAINS":  2,
	"STRSTARTS": 2,
	"STRENDS":   2,
}

func (p *parser) parsePrimary() (Expression, error) {
	p.skipWhitespace()
	ch := p.peek()

	if ch == '(' {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.peek() != ')' {
			return nil, p.errorf("expected ')' in expression")
		}
		p.advance()
		return expr, nil
	}

	if ch == '?' || ch == '$' {
		v, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &VariableExpression{Variable: v}, nil
	}

	if ch == '"' || ch == '\'' {
		lit, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		return &TermExpression{Term: lit}, nil
	}

	if ch >= '0' && ch <= '9' {
		lit, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		return &TermExpression{Term: lit}, nil
	}

	if ch == '<' {
		value, err := p.parseIRIRef()
		if err != nil {
			return nil, err
		}
		iri, err := rdf.NewIRI(p.resolveIRI(value))
		if err != nil {
			return nil, p.errorf("invalid IRI <%s>", value)
		}
		return &TermExpression{Term: iri}, nil
	}

	if p.matchKeywordAt("true") {
		return &TermExpression{Term: rdf.NewBooleanLiteral(true)}, nil
	}
	if p.matchKeywordAt("false") {
		return &TermExpression{Term: rdf.NewBooleanLiteral(false)}, nil
	}

	// Function call or prefixed name.
	nameStart := p.pos
	name := p.readWhile(func(ch byte) bool {
		return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
	})
	if name != "" {
		upper := strings.ToUpper(name)
		if _, ok := builtinFunctions[upper]; ok {
			return p.parseFunctionCall(upper)
		}
		// Not a builtin: rewind and try a prefixed name.
		p.pos = nameStart
	}
	if isPNameStart(ch) || ch == ':' {
		value, err := p.parsePrefixedName()
		if err != nil {
			return nil, err
		}
		iri, err := rdf.NewIRI(value)
		if err != nil {
			return nil, p.errorf("invalid IRI <%s>", value)
		}
		return &TermExpression{Term: iri}, nil
	}

	return nil, p.errorf("unexpected character %q in expression", ch)
}

func (p *parser) parseFunctionCall(name string) (Expression, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, p.errorf("expected '(' after function %s", name)
	}
	p.advance()

	var args []Expression
	for {
		p.skipWhitespace()
		if p.peek() == ')' {
			p.advance()
			break
		}
		if len(args) > 0 {
			if p.peek() != ',' {
				return nil, p.errorf("expected ',' or ')' in %s arguments", name)
			}
			p.advance()
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &FunctionCallExpression{Function: name, Arguments: args}, nil
}

// Helpers.

func (p *parser) peek() byte {
	if p.pos >= p.length {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) advance() {
	if p.pos < p.length {
		p.pos++
	}
}

func (p *parser) skipWhitespace() {
	for p.pos < p.length {
		ch := p.input[p.pos]
		if isWhitespace(ch) {
			p.pos++
			continue
		}
		if ch == '#' {
			for p.pos < p.length && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		return
	}
}

func (p *parser) readWhile(pred func(byte) bool) string {
	start := p.pos
	for p.pos < p.length && pred(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// matchKeyword consumes a case-insensitive keyword followed by a word
// boundary, skipping leading whitespace.
func (p *parser) matchKeyword(keyword string) bool {
	p.skipWhitespace()
	return p.matchKeywordAt(keyword)
}

func (p *parser) matchKeywordAt(keyword string) bool {
	if p.pos+len(keyword) > p.length {
		return false
	}
	if !strings.EqualFold(p.input[p.pos:p.pos+len(keyword)], keyword) {
		return false
	}
	if !p.atKeywordBoundary(p.pos + len(keyword)) {
		return false
	}
	p.pos += len(keyword)
	return true
}

func (p *parser) atKeywordBoundary(at int) bool {
	if at >= p.length {
		return true
	}
	ch := p.input[at]
	return !isNameChar(ch)
}

func (p *parser) matchOperator(op string) bool {
	p.skipWhitespace()
	if strings.HasPrefix(p.input[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *parser) resolveIRI(iri string) string {
	if p.base == "" || isAbsoluteIRI(iri) {
		return iri
	}
	return p.base + iri
}

func isAbsoluteIRI(iri string) bool {
	colon := strings.IndexByte(iri, ':')
	return colon > 0
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for i := 0; i < p.pos && i < p.length; i++ {
		if p.input[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return graperr.SyntaxError(graperr.Position{Line: line, Column: col, Offset: p.pos}, format, args...)
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isPNameStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isNameChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' || ch == '_' || ch == '-'
}
