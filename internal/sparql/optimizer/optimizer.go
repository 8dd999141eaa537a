// Package optimizer rewrites logical plans into cheaper equivalents.
// All rewrites preserve semantics and are idempotent: optimizing an
// already-optimized plan returns it unchanged.
package optimizer

import (
	"sort"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// Stats provides cardinality hints for selectivity estimation.
// *store.Store satisfies it.
type Stats interface {
	Len() int
	PredicateCount(predicate rdf.Term) int64
}

type Optimizer struct {
	stats Stats
}

func New(stats Stats) *Optimizer {
	return &Optimizer{stats: stats}
}

// Optimize applies, bottom-up: filter pushdown below joins, triple
// pattern reordering by estimated selectivity, and limit pushdown into
// union branches.
func (o *Optimizer) Optimize(node algebra.Node) algebra.Node {
	switch n := node.(type) {
	case *algebra.BGP:
		return o.reorderBGP(n)
	case *algebra.Join:
		return &algebra.Join{Left: o.Optimize(n.Left), Right: o.Optimize(n.Right)}
	case *algebra.LeftJoin:
		return &algebra.LeftJoin{Left: o.Optimize(n.Left), Right: o.Optimize(n.Right), Filter: n.Filter}
	case *algebra.Union:
		return &algebra.Union{Left: o.Optimize(n.Left), Right: o.Optimize(n.Right)}
	case *algebra.Minus:
		return &algebra.Minus{Left: o.Optimize(n.Left), Right: o.Optimize(n.Right)}
	case *algebra.Filter:
		return o.pushFilter(&algebra.Filter{Input: o.Optimize(n.Input), Expression: n.Expression})
	case *algebra.Extend:
		return &algebra.Extend{Input: o.Optimize(n.Input), Variable: n.Variable, Expression: n.Expression}
	case *algebra.Group:
		return &algebra.Group{Input: o.Optimize(n.Input), By: n.By, Aggregations: n.Aggregations}
	case *algebra.OrderBy:
		return &algebra.OrderBy{Input: o.Optimize(n.Input), Conditions: n.Conditions}
	case *algebra.Slice:
		return o.pushSlice(&algebra.Slice{Input: o.Optimize(n.Input), Offset: n.Offset, Limit: n.Limit})
	case *algebra.Project:
		return &algebra.Project{Input: o.Optimize(n.Input), Variables: n.Variables}
	case *algebra.Distinct:
		return &algebra.Distinct{Input: o.Optimize(n.Input)}
	default:
		return node
	}
}

// pushFilter moves a filter below a join when one side binds every
// variable the expression references. Evaluating the filter earlier
// shrinks the join input.
func (o *Optimizer) pushFilter(f *algebra.Filter) algebra.Node {
	join, ok := f.Input.(*algebra.Join)
	if !ok {
		return f
	}
	needed := algebra.ExpressionVariables(f.Expression)
	if len(needed) == 0 {
		return f
	}
	if covers(algebra.Variables(join.Left), needed) {
		return &algebra.Join{
			Left:  o.pushFilter(&algebra.Filter{Input: join.Left, Expression: f.Expression}),
			Right: join.Right,
		}
	}
	if covers(algebra.Variables(join.Right), needed) {
		return &algebra.Join{
			Left:  join.Left,
			Right: o.pushFilter(&algebra.Filter{Input: join.Right, Expression: f.Expression}),
		}
	}
	return f
}

func covers(have, needed map[string]struct{}) bool {
	for name := range needed {
		if _, ok := have[name]; !ok {
			return false
		}
	}
	return true
}

// pushSlice duplicates a limit into both union branches: each branch
// can contribute at most offset+limit solutions to the final slice.
// The outer slice stays, so offset handling is unchanged.
func (o *Optimizer) pushSlice(s *algebra.Slice) algebra.Node {
	if s.Limit < 0 {
		return s
	}
	// Look through Project: it is one-to-one, so a limit below it takes
	// the same rows. OrderBy and Distinct block the rewrite.
	var project *algebra.Project
	input := s.Input
	if p, ok := input.(*algebra.Project); ok {
		project = p
		input = p.Input
	}
	union, ok := input.(*algebra.Union)
	if !ok {
		return s
	}
	bound := s.Offset + s.Limit
	left, leftChanged := boundBranch(union.Left, bound)
	right, rightChanged := boundBranch(union.Right, bound)
	if !leftChanged && !rightChanged {
		return s
	}
	var rewritten algebra.Node = &algebra.Union{Left: left, Right: right}
	if project != nil {
		rewritten = &algebra.Project{Input: rewritten, Variables: project.Variables}
	}
	return &algebra.Slice{Input: rewritten, Offset: s.Offset, Limit: s.Limit}
}

func boundBranch(branch algebra.Node, bound int) (algebra.Node, bool) {
	if inner, ok := branch.(*algebra.Slice); ok {
		if inner.Offset == 0 && inner.Limit >= 0 && inner.Limit <= bound {
			return branch, false
		}
	}
	return &algebra.Slice{Input: branch, Offset: 0, Limit: bound}, true
}

// reorderBGP sorts triple patterns so the most selective evaluate
// first. Selectivity is estimated from the number of bound positions,
// breaking ties with the store's predicate frequency. The sort is
// stable, so equally selective patterns keep source order.
func (o *Optimizer) reorderBGP(bgp *algebra.BGP) algebra.Node {
	if len(bgp.Patterns) < 2 {
		return bgp
	}
	patterns := make([]*parser.TriplePattern, len(bgp.Patterns))
	copy(patterns, bgp.Patterns)
	costs := make(map[*parser.TriplePattern]int64, len(patterns))
	for _, tp := range patterns {
		costs[tp] = o.patternCost(tp)
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		return costs[patterns[i]] < costs[patterns[j]]
	})
	return &algebra.BGP{Patterns: patterns}
}

func (o *Optimizer) patternCost(tp *parser.TriplePattern) int64 {
	bound := 0
	for _, tv := range [...]parser.TermOrVariable{tp.Subject, tp.Predicate, tp.Object} {
		if !tv.IsVariable() {
			bound++
		}
	}
	total := int64(o.stats.Len())
	if total == 0 {
		total = 1
	}

	var estimate int64
	switch bound {
	case 3:
		estimate = 1
	case 2:
		estimate = 2
	case 1:
		estimate = total / 2
	default:
		estimate = total
	}
	// A bound predicate narrows the candidate set to its frequency.
	if !tp.Predicate.IsVariable() {
		if freq := o.stats.PredicateCount(tp.Predicate.Term); freq < estimate {
			estimate = freq
		}
	}
	return estimate
}
