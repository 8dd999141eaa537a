// Package parser turns SPARQL query text into an abstract syntax tree.
// It is a pure function over the input: no store access, no side effects.
package parser

import (
	"strings"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// QueryForm is the top-level form of a query.
type QueryForm int

const (
	FormSelect QueryForm = iota
	FormConstruct
	FormAsk
)

// Query is a parsed SPARQL query.
type Query struct {
	Form      QueryForm
	Select    *SelectQuery
	Construct *ConstructQuery
	Ask       *AskQuery
}

// SelectQuery is a SELECT query with its modifiers.
type SelectQuery struct {
	Distinct bool
	Items    []*SelectItem // nil means SELECT *
	Where    *GraphPattern
	GroupBy  []*Variable
	OrderBy  []*OrderCondition
	Limit    *int
	Offset   *int
}

// SelectItem is one projection entry: a plain variable or an aggregate
// expression with its alias, as in (COUNT(?x) AS ?n).
type SelectItem struct {
	Variable  *Variable
	Aggregate *AggregateExpr
	Alias     *Variable
}

// AggregateFunc enumerates the supported aggregate functions.
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggGroupConcat
)

// AggregateExpr is an aggregate call in the projection list.
type AggregateExpr struct {
	Func      AggregateFunc
	Distinct  bool
	Arg       *Variable // nil when Star
	Star      bool      // COUNT(*)
	Separator string    // GROUP_CONCAT separator, empty means default
}

// ConstructQuery is a CONSTRUCT query: a template instantiated per solution.
type ConstructQuery struct {
	Template []*TriplePattern
	Where    *GraphPattern
}

// AskQuery is an ASK query.
type AskQuery struct {
	Where *GraphPattern
}

// GraphPatternKind discriminates group graph pattern roles.
type GraphPatternKind int

const (
	KindGroup GraphPatternKind = iota
	KindOptional
	KindUnion
	KindMinus
)

// GraphPattern is a group graph pattern. Elements preserve source order;
// a Union pattern holds its branches as child group patterns.
type GraphPattern struct {
	Kind     GraphPatternKind
	Elements []Element
}

// Element is one entry of a group graph pattern, exactly one field set.
type Element struct {
	Triple *TriplePattern
	Filter *Filter
	Bind   *Bind
	Child  *GraphPattern
}

// TriplePattern is a triple pattern with variables in any position.
type TriplePattern struct {
	Subject   TermOrVariable
	Predicate TermOrVariable
	Object    TermOrVariable
}

// TermOrVariable holds either a concrete RDF term or a variable.
type TermOrVariable struct {
	Term     rdf.Term
	Variable *Variable
}

// IsVariable reports whether this position is a variable.
func (t *TermOrVariable) IsVariable() bool {
	return t.Variable != nil
}

// Variable is a SPARQL variable without its ?/$ sigil.
type Variable struct {
	Name string
}

// pathVarPrefix starts with a character variable names cannot contain,
// so generated path variables never collide with query variables.
const pathVarPrefix = ".path"

// IsPathVariable reports whether a variable name was generated while
// desugaring a sequence property path. Such variables join the chained
// patterns but are never projected into results.
func IsPathVariable(name string) bool {
	return strings.HasPrefix(name, pathVarPrefix)
}

// Filter is a FILTER constraint.
type Filter struct {
	Expression Expression
}

// Bind assigns an expression result to a fresh variable.
type Bind struct {
	Expression Expression
	Variable   *Variable
}

// Expression is a FILTER/BIND expression node.
type Expression interface {
	expressionNode()
}

// BinaryExpression is a binary operation.
type BinaryExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

func (e *BinaryExpression) expressionNode() {}

// UnaryExpression is a unary operation.
type UnaryExpression struct {
	Operator Operator
	Operand  Expression
}

func (e *UnaryExpression) expressionNode() {}

// VariableExpression references a variable.
type VariableExpression struct {
	Variable *Variable
}

func (e *VariableExpression) expressionNode() {}

// TermExpression is a constant term in an expression.
type TermExpression struct {
	Term rdf.Term
}

func (e *TermExpression) expressionNode() {}

// FunctionCallExpression is a built-in function call.
type FunctionCallExpression struct {
	Function  string // upper-cased name: REGEX, BOUND, STR, ...
	Arguments []Expression
}

func (e *FunctionCallExpression) expressionNode() {}

// Operator enumerates expression operators.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpNot

	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNegate
)

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Variable  *Variable
	Ascending bool
}
