// Package algebra defines the logical query plan produced from a parsed
// SPARQL query and consumed by the optimizer and executor.
package algebra

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
)

// Node is a logical plan operator. The set of implementations is closed;
// the executor rejects anything it does not recognize.
type Node interface {
	algebraNode()
	String() string
}

// BGP is a basic graph pattern: an ordered list of triple patterns
// evaluated as a nested-loop chain.
type BGP struct {
	Patterns []*parser.TriplePattern
}

// Join combines two inputs on compatible bindings.
type Join struct {
	Left  Node
	Right Node
}

// LeftJoin implements OPTIONAL: left solutions survive even when no
// compatible right solution exists. Filter, when set, applies to the
// merged solution before it is accepted.
type LeftJoin struct {
	Left   Node
	Right  Node
	Filter parser.Expression
}

// Union concatenates the solutions of both inputs (bag semantics).
type Union struct {
	Left  Node
	Right Node
}

// Minus removes left solutions for which a compatible right solution
// exists that shares at least one bound variable.
type Minus struct {
	Left  Node
	Right Node
}

// Filter keeps solutions whose expression evaluates to true.
type Filter struct {
	Input      Node
	Expression parser.Expression
}

// Extend binds a new variable to the value of an expression (BIND).
type Extend struct {
	Input      Node
	Variable   string
	Expression parser.Expression
}

// Aggregation is one aggregate computed per group.
type Aggregation struct {
	Func      parser.AggregateFunc
	Distinct  bool
	Var       string // empty when Star
	Star      bool
	Separator string
	Alias     string
}

// Group partitions solutions by the By variables and computes the
// aggregations per partition.
type Group struct {
	Input        Node
	By           []string
	Aggregations []*Aggregation
}

// OrderBy sorts solutions by the given conditions.
type OrderBy struct {
	Input      Node
	Conditions []*parser.OrderCondition
}

// Slice applies OFFSET and LIMIT. Limit < 0 means unlimited.
type Slice struct {
	Input  Node
	Offset int
	Limit  int
}

// Project restricts solutions to the named variables. A nil Variables
// slice keeps everything (SELECT *).
type Project struct {
	Input     Node
	Variables []string
}

// Distinct removes duplicate solutions.
type Distinct struct {
	Input Node
}

func (*BGP) algebraNode()      {}
func (*Join) algebraNode()     {}
func (*LeftJoin) algebraNode() {}
func (*Union) algebraNode()    {}
func (*Minus) algebraNode()    {}
func (*Filter) algebraNode()   {}
func (*Extend) algebraNode()   {}
func (*Group) algebraNode()    {}
func (*OrderBy) algebraNode()  {}
func (*Slice) algebraNode()    {}
func (*Project) algebraNode()  {}
func (*Distinct) algebraNode() {}

func (n *BGP) String() string {
	parts := make([]string, 0, len(n.Patterns))
	for _, tp := range n.Patterns {
		parts = append(parts, patternString(tp))
	}
	return "BGP(" + strings.Join(parts, " . ") + ")"
}

func (n *Join) String() string     { return fmt.Sprintf("Join(%s, %s)", n.Left, n.Right) }
func (n *LeftJoin) String() string { return fmt.Sprintf("LeftJoin(%s, %s)", n.Left, n.Right) }
func (n *Union) String() string    { return fmt.Sprintf("Union(%s, %s)", n.Left, n.Right) }
func (n *Minus) String() string    { return fmt.Sprintf("Minus(%s, %s)", n.Left, n.Right) }
func (n *Filter) String() string   { return fmt.Sprintf("Filter(%s)", n.Input) }
func (n *Extend) String() string   { return fmt.Sprintf("Extend(?%s, %s)", n.Variable, n.Input) }

func (n *Group) String() string {
	return fmt.Sprintf("Group([%s], %s)", strings.Join(n.By, " "), n.Input)
}

func (n *OrderBy) String() string { return fmt.Sprintf("OrderBy(%s)", n.Input) }

func (n *Slice) String() string {
	return fmt.Sprintf("Slice(%d, %d, %s)", n.Offset, n.Limit, n.Input)
}

func (n *Project) String() string {
	if n.Variables == nil {
		return fmt.Sprintf("Project(*, %s)", n.Input)
	}
	return fmt.Sprintf("Project([%s], %s)", strings.Join(n.Variables, " "), n.Input)
}

func (n *Distinct) String() string { return fmt.Sprintf("Distinct(%s)", n.Input) }

func patternString(tp *parser.TriplePattern) string {
	return termOrVarString(tp.Subject) + " " + termOrVarString(tp.Predicate) + " " + termOrVarString(tp.Object)
}

func termOrVarString(tv parser.TermOrVariable) string {
	if tv.IsVariable() {
		return "?" + tv.Variable.Name
	}
	return tv.Term.String()
}

// Variables returns the set of variables a node can bind.
func Variables(n Node) map[string]struct{} {
	vars := make(map[string]struct{})
	collectVariables(n, vars)
	return vars
}

// SortedVariables returns the bindable variables of a node in
// lexicographic order.
func SortedVariables(n Node) []string {
	vars := Variables(n)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectVariables(n Node, vars map[string]struct{}) {
	switch node := n.(type) {
	case *BGP:
		for _, tp := range node.Patterns {
			for _, tv := range [...]parser.TermOrVariable{tp.Subject, tp.Predicate, tp.Object} {
				if tv.IsVariable() && !parser.IsPathVariable(tv.Variable.Name) {
					vars[tv.Variable.Name] = struct{}{}
				}
			}
		}
	case *Join:
		collectVariables(node.Left, vars)
		collectVariables(node.Right, vars)
	case *LeftJoin:
		collectVariables(node.Left, vars)
		collectVariables(node.Right, vars)
	case *Union:
		collectVariables(node.Left, vars)
		collectVariables(node.Right, vars)
	case *Minus:
		// MINUS only filters; right-side variables never escape.
		collectVariables(node.Left, vars)
	case *Filter:
		collectVariables(node.Input, vars)
	case *Extend:
		collectVariables(node.Input, vars)
		vars[node.Variable] = struct{}{}
	case *Group:
		for _, name := range node.By {
			vars[name] = struct{}{}
		}
		for _, agg := range node.Aggregations {
			vars[agg.Alias] = struct{}{}
		}
	case *OrderBy:
		collectVariables(node.Input, vars)
	case *Slice:
		collectVariables(node.Input, vars)
	case *Distinct:
		collectVariables(node.Input, vars)
	case *Project:
		if node.Variables == nil {
			collectVariables(node.Input, vars)
			return
		}
		inner := Variables(node.Input)
		for _, name := range node.Variables {
			if _, ok := inner[name]; ok {
				vars[name] = struct{}{}
			}
		}
	}
}

// ExpressionVariables returns the variables referenced by a filter or
// bind expression.
func ExpressionVariables(expr parser.Expression) map[string]struct{} {
	vars := make(map[string]struct{})
	collectExpressionVariables(expr, vars)
	return vars
}

func collectExpressionVariables(expr parser.Expression, vars map[string]struct{}) {
	switch e := expr.(type) {
	case *parser.VariableExpression:
		vars[e.Variable.Name] = struct{}{}
	case *parser.BinaryExpression:
		collectExpressionVariables(e.Left, vars)
		collectExpressionVariables(e.Right, vars)
	case *parser.UnaryExpression:
		collectExpressionVariables(e.Operand, vars)
	case *parser.FunctionCallExpression:
		for _, arg := range e.Arguments {
			collectExpressionVariables(arg, vars)
		}
	}
}
