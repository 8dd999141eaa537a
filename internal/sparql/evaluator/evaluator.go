// Package evaluator computes SPARQL filter and bind expressions over
// solution bindings, plus the per-group aggregate functions.
package evaluator

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

// Evaluate computes an expression against a binding. Unbound variables
// and type errors return an error; filters treat that as false.
func Evaluate(expr parser.Expression, b *store.Binding) (rdf.Term, error) {
	switch e := expr.(type) {
	case *parser.TermExpression:
		return e.Term, nil

	case *parser.VariableExpression:
		term, ok := b.Get(e.Variable.Name)
		if !ok {
			return nil, graperr.Errorf(graperr.CodeExecUnboundVariable,
				"variable ?%s is not bound", e.Variable.Name)
		}
		return term, nil

	case *parser.UnaryExpression:
		return evaluateUnary(e, b)

	case *parser.BinaryExpression:
		return evaluateBinary(e, b)

	case *parser.FunctionCallExpression:
		return evaluateFunction(e, b)

	default:
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "unsupported expression %T", expr)
	}
}

// EffectiveBooleanValue implements the SPARQL EBV rules: booleans and
// numerics by value, strings by emptiness, everything else is an error.
func EffectiveBooleanValue(term rdf.Term) (bool, error) {
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return false, graperr.Errorf(graperr.CodeExecUnsupported,
			"no effective boolean value for %s", term.String())
	}
	switch {
	case lit.Datatype != nil && lit.Datatype.Equals(rdf.XSDBoolean):
		return lit.Value == "true" || lit.Value == "1", nil
	case isNumericDatatype(lit.Datatype):
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return false, nil
		}
		return f != 0 && !math.IsNaN(f), nil
	case lit.Datatype == nil || lit.Datatype.Equals(rdf.XSDString):
		return lit.Value != "", nil
	default:
		return false, graperr.Errorf(graperr.CodeExecUnsupported,
			"no effective boolean value for %s", term.String())
	}
}

func evaluateUnary(e *parser.UnaryExpression, b *store.Binding) (rdf.Term, error) {
	switch e.Operator {
	case parser.OpNot:
		val, err := Evaluate(e.Operand, b)
		if err != nil {
			return nil, err
		}
		truth, err := EffectiveBooleanValue(val)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(!truth), nil

	case parser.OpNegate:
		val, err := Evaluate(e.Operand, b)
		if err != nil {
			return nil, err
		}
		n, ok := numericValue(val)
		if !ok {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "cannot negate %s", val.String())
		}
		if n.isInteger {
			return rdf.NewIntegerLiteral(-n.integer), nil
		}
		return rdf.NewDoubleLiteral(-n.float), nil

	default:
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "unsupported unary operator %d", e.Operator)
	}
}

func evaluateBinary(e *parser.BinaryExpression, b *store.Binding) (rdf.Term, error) {
	switch e.Operator {
	case parser.OpAnd, parser.OpOr:
		return evaluateLogical(e, b)
	case parser.OpEqual, parser.OpNotEqual,
		parser.OpLessThan, parser.OpLessThanOrEqual,
		parser.OpGreaterThan, parser.OpGreaterThanOrEqual:
		return evaluateComparison(e, b)
	case parser.OpAdd, parser.OpSubtract, parser.OpMultiply, parser.OpDivide:
		return evaluateArithmetic(e, b)
	default:
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "unsupported binary operator %d", e.Operator)
	}
}

// evaluateLogical follows SPARQL's error-tolerant && and ||: one errored
// operand does not decide the result when the other one already does.
func evaluateLogical(e *parser.BinaryExpression, b *store.Binding) (rdf.Term, error) {
	left, lerr := evaluateBool(e.Left, b)
	right, rerr := evaluateBool(e.Right, b)

	if e.Operator == parser.OpAnd {
		if lerr == nil && !left {
			return rdf.NewBooleanLiteral(false), nil
		}
		if rerr == nil && !right {
			return rdf.NewBooleanLiteral(false), nil
		}
		if lerr != nil {
			return nil, lerr
		}
		if rerr != nil {
			return nil, rerr
		}
		return rdf.NewBooleanLiteral(true), nil
	}

	if lerr == nil && left {
		return rdf.NewBooleanLiteral(true), nil
	}
	if rerr == nil && right {
		return rdf.NewBooleanLiteral(true), nil
	}
	if lerr != nil {
		return nil, lerr
	}
	if rerr != nil {
		return nil, rerr
	}
	return rdf.NewBooleanLiteral(false), nil
}

func evaluateBool(expr parser.Expression, b *store.Binding) (bool, error) {
	val, err := Evaluate(expr, b)
	if err != nil {
		return false, err
	}
	return EffectiveBooleanValue(val)
}

func evaluateComparison(e *parser.BinaryExpression, b *store.Binding) (rdf.Term, error) {
	left, err := Evaluate(e.Left, b)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(e.Right, b)
	if err != nil {
		return nil, err
	}

	cmp, err := CompareTerms(left, right)
	if err != nil {
		// Equality is still defined on incomparable terms.
		switch e.Operator {
		case parser.OpEqual:
			return rdf.NewBooleanLiteral(left.Equals(right)), nil
		case parser.OpNotEqual:
			return rdf.NewBooleanLiteral(!left.Equals(right)), nil
		}
		return nil, err
	}

	var result bool
	switch e.Operator {
	case parser.OpEqual:
		result = cmp == 0
	case parser.OpNotEqual:
		result = cmp != 0
	case parser.OpLessThan:
		result = cmp < 0
	case parser.OpLessThanOrEqual:
		result = cmp <= 0
	case parser.OpGreaterThan:
		result = cmp > 0
	case parser.OpGreaterThanOrEqual:
		result = cmp >= 0
	}
	return rdf.NewBooleanLiteral(result), nil
}

// CompareTerms orders two terms: numerically when both are numeric
// literals, lexically when both are string literals, by value for
// booleans. Anything else is incomparable.
func CompareTerms(left, right rdf.Term) (int, error) {
	ln, lok := numericValue(left)
	rn, rok := numericValue(right)
	if lok && rok {
		if ln.isInteger && rn.isInteger {
			return compareInt64(ln.integer, rn.integer), nil
		}
		return compareFloat64(ln.asFloat(), rn.asFloat()), nil
	}

	llit, lok := left.(*rdf.Literal)
	rlit, rok := right.(*rdf.Literal)
	if lok && rok {
		if isStringDatatype(llit.Datatype) && isStringDatatype(rlit.Datatype) {
			return strings.Compare(llit.Value, rlit.Value), nil
		}
		if llit.Datatype != nil && rlit.Datatype != nil &&
			llit.Datatype.Equals(rdf.XSDBoolean) && rlit.Datatype.Equals(rdf.XSDBoolean) {
			return strings.Compare(llit.Value, rlit.Value), nil
		}
	}
	return 0, graperr.Errorf(graperr.CodeExecUnsupported,
		"cannot compare %s with %s", left.String(), right.String())
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func evaluateArithmetic(e *parser.BinaryExpression, b *store.Binding) (rdf.Term, error) {
	left, err := Evaluate(e.Left, b)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(e.Right, b)
	if err != nil {
		return nil, err
	}
	ln, lok := numericValue(left)
	rn, rok := numericValue(right)
	if !lok || !rok {
		return nil, graperr.Errorf(graperr.CodeExecUnsupported,
			"arithmetic needs numeric operands, got %s and %s", left.String(), right.String())
	}

	// Integer arithmetic stays integer except for division.
	if ln.isInteger && rn.isInteger && e.Operator != parser.OpDivide {
		switch e.Operator {
		case parser.OpAdd:
			return rdf.NewIntegerLiteral(ln.integer + rn.integer), nil
		case parser.OpSubtract:
			return rdf.NewIntegerLiteral(ln.integer - rn.integer), nil
		case parser.OpMultiply:
			return rdf.NewIntegerLiteral(ln.integer * rn.integer), nil
		}
	}

	lf, rf := ln.asFloat(), rn.asFloat()
	switch e.Operator {
	case parser.OpAdd:
		return rdf.NewDoubleLiteral(lf + rf), nil
	case parser.OpSubtract:
		return rdf.NewDoubleLiteral(lf - rf), nil
	case parser.OpMultiply:
		return rdf.NewDoubleLiteral(lf * rf), nil
	default:
		if rf == 0 {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "division by zero")
		}
		return rdf.NewDoubleLiteral(lf / rf), nil
	}
}

func evaluateFunction(e *parser.FunctionCallExpression, b *store.Binding) (rdf.Term, error) {
	// BOUND inspects the binding itself and must not evaluate its
	// argument: an unbound variable is its whole point.
	if e.Function == "BOUND" {
		if len(e.Arguments) != 1 {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "BOUND takes one argument")
		}
		v, ok := e.Arguments[0].(*parser.VariableExpression)
		if !ok {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "BOUND argument must be a variable")
		}
		_, bound := b.Get(v.Variable.Name)
		return rdf.NewBooleanLiteral(bound), nil
	}

	args := make([]rdf.Term, len(e.Arguments))
	for i, arg := range e.Arguments {
		val, err := Evaluate(arg, b)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}

	switch e.Function {
	case "STR":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewLiteral(lexicalForm(args[0])), nil

	case "LANG":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		if lit, ok := args[0].(*rdf.Literal); ok {
			return rdf.NewLiteral(lit.Language), nil
		}
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "LANG expects a literal")

	case "DATATYPE":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		lit, ok := args[0].(*rdf.Literal)
		if !ok {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "DATATYPE expects a literal")
		}
		switch {
		case lit.Datatype != nil:
			return lit.Datatype, nil
		case lit.Language != "":
			return rdf.RDFLangString, nil
		default:
			return rdf.XSDString, nil
		}

	case "ISNUMERIC":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		_, ok := numericValue(args[0])
		return rdf.NewBooleanLiteral(ok), nil

	case "ISIRI":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(args[0].Type() == rdf.TermTypeIRI), nil

	case "ISLITERAL":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(args[0].Type() == rdf.TermTypeLiteral), nil

	case "ISBLANK":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(args[0].Type() == rdf.TermTypeBlankNode), nil

	case "REGEX":
		if len(e.Arguments) != 2 && len(e.Arguments) != 3 {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "REGEX takes two or three arguments")
		}
		text := lexicalForm(args[0])
		pattern := lexicalForm(args[1])
		if len(args) == 3 && strings.Contains(lexicalForm(args[2]), "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "invalid REGEX pattern %q", pattern)
		}
		return rdf.NewBooleanLiteral(re.MatchString(text)), nil

	case "STRLEN":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewIntegerLiteral(int64(len([]rune(lexicalForm(args[0]))))), nil

	case "UCASE":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewLiteral(strings.ToUpper(lexicalForm(args[0]))), nil

	case "LCASE":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rdf.NewLiteral(strings.ToLower(lexicalForm(args[0]))), nil

	case "CONTAINS":
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.Contains(lexicalForm(args[0]), lexicalForm(args[1]))), nil

	case "STRSTARTS":
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.HasPrefix(lexicalForm(args[0]), lexicalForm(args[1]))), nil

	case "STRENDS":
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(strings.HasSuffix(lexicalForm(args[0]), lexicalForm(args[1]))), nil

	case "ABS", "CEIL", "FLOOR", "ROUND":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		n, ok := numericValue(args[0])
		if !ok {
			return nil, graperr.Errorf(graperr.CodeExecUnsupported, "%s expects a numeric argument", e.Function)
		}
		if n.isInteger && e.Function != "ABS" {
			return rdf.NewIntegerLiteral(n.integer), nil
		}
		f := n.asFloat()
		switch e.Function {
		case "ABS":
			if n.isInteger {
				if n.integer < 0 {
					return rdf.NewIntegerLiteral(-n.integer), nil
				}
				return rdf.NewIntegerLiteral(n.integer), nil
			}
			return rdf.NewDoubleLiteral(math.Abs(f)), nil
		case "CEIL":
			return rdf.NewDoubleLiteral(math.Ceil(f)), nil
		case "FLOOR":
			return rdf.NewDoubleLiteral(math.Floor(f)), nil
		default:
			return rdf.NewDoubleLiteral(math.Round(f)), nil
		}

	default:
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "unsupported function %s", e.Function)
	}
}

func arity(e *parser.FunctionCallExpression, want int) error {
	if len(e.Arguments) != want {
		return graperr.Errorf(graperr.CodeExecUnsupported,
			"%s takes %d argument(s), got %d", e.Function, want, len(e.Arguments))
	}
	return nil
}

// lexicalForm implements STR(): the plain text of a literal or the IRI
// string without angle brackets.
func lexicalForm(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.Literal:
		return t.Value
	case *rdf.IRI:
		return t.Value
	default:
		return term.String()
	}
}

type numeric struct {
	isInteger bool
	integer   int64
	float     float64
}

func (n numeric) asFloat() float64 {
	if n.isInteger {
		return float64(n.integer)
	}
	return n.float
}

func numericValue(term rdf.Term) (numeric, bool) {
	lit, ok := term.(*rdf.Literal)
	if !ok || !isNumericDatatype(lit.Datatype) {
		return numeric{}, false
	}
	if lit.Datatype.Equals(rdf.XSDInteger) {
		i, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return numeric{}, false
		}
		return numeric{isInteger: true, integer: i}, true
	}
	f, err := strconv.ParseFloat(lit.Value, 64)
	if err != nil {
		return numeric{}, false
	}
	return numeric{float: f}, true
}

func isNumericDatatype(dt *rdf.IRI) bool {
	if dt == nil {
		return false
	}
	return dt.Equals(rdf.XSDInteger) || dt.Equals(rdf.XSDDecimal) || dt.Equals(rdf.XSDDouble)
}

func isStringDatatype(dt *rdf.IRI) bool {
	return dt == nil || dt.Equals(rdf.XSDString)
}
