// Package executor evaluates logical plans against a triple source
// using pull-based iterators. Join-like operators re-evaluate their
// right side seeded with each left solution, so variable bindings flow
// into nested patterns as index lookups instead of full scans.
package executor

import (
	"context"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

type Executor struct {
	source store.Source
}

func New(source store.Source) *Executor {
	return &Executor{source: source}
}

// Execute runs a plan to completion and returns all solutions.
func (e *Executor) Execute(ctx context.Context, node algebra.Node) ([]*store.Binding, error) {
	it, err := e.iterator(ctx, node, store.NewBinding())
	if err != nil {
		return nil, err
	}
	return drain(it)
}

// Ask reports whether the plan produces at least one solution.
func (e *Executor) Ask(ctx context.Context, node algebra.Node) (bool, error) {
	it, err := e.iterator(ctx, node, store.NewBinding())
	if err != nil {
		return false, err
	}
	b, err := it.Next()
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// Construct instantiates a template once per solution. Blank nodes in
// the template get a fresh identity per solution; duplicate triples and
// triples with unbound or ill-positioned components are dropped.
func (e *Executor) Construct(ctx context.Context, node algebra.Node, template []*parser.TriplePattern) ([]*rdf.Triple, error) {
	solutions, err := e.Execute(ctx, node)
	if err != nil {
		return nil, err
	}

	var out []*rdf.Triple
	seen := make(map[rdf.TripleKey]struct{})
	for _, solution := range solutions {
		blanks := make(map[string]*rdf.BlankNode)
		for _, tp := range template {
			s, ok := instantiate(tp.Subject, solution, blanks)
			if !ok {
				continue
			}
			p, ok := instantiate(tp.Predicate, solution, blanks)
			if !ok {
				continue
			}
			o, ok := instantiate(tp.Object, solution, blanks)
			if !ok {
				continue
			}
			triple, err := rdf.NewTriple(s, p, o)
			if err != nil {
				continue
			}
			key := triple.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, triple)
		}
	}
	return out, nil
}

func instantiate(tv parser.TermOrVariable, solution *store.Binding, blanks map[string]*rdf.BlankNode) (rdf.Term, bool) {
	if tv.IsVariable() {
		term, ok := solution.Get(tv.Variable.Name)
		return term, ok
	}
	if bn, ok := tv.Term.(*rdf.BlankNode); ok {
		fresh, ok := blanks[bn.ID]
		if !ok {
			fresh = rdf.NewAnonBlankNode()
			blanks[bn.ID] = fresh
		}
		return fresh, true
	}
	return tv.Term, true
}

// iterator builds the operator tree for node, seeded with an input
// solution every produced solution must extend.
func (e *Executor) iterator(ctx context.Context, node algebra.Node, seed *store.Binding) (iterator, error) {
	switch n := node.(type) {
	case *algebra.BGP:
		return &bgpIterator{ctx: ctx, source: e.source, patterns: n.Patterns, seed: seed}, nil

	case *algebra.Join:
		left, err := e.iterator(ctx, n.Left, seed)
		if err != nil {
			return nil, err
		}
		return &joinIterator{ctx: ctx, exec: e, left: left, right: n.Right}, nil

	case *algebra.LeftJoin:
		left, err := e.iterator(ctx, n.Left, seed)
		if err != nil {
			return nil, err
		}
		return &leftJoinIterator{ctx: ctx, exec: e, left: left, right: n.Right, filter: n.Filter}, nil

	case *algebra.Union:
		left, err := e.iterator(ctx, n.Left, seed)
		if err != nil {
			return nil, err
		}
		return &unionIterator{ctx: ctx, exec: e, current: left, right: n.Right, seed: seed}, nil

	case *algebra.Minus:
		left, err := e.iterator(ctx, n.Left, seed)
		if err != nil {
			return nil, err
		}
		return &minusIterator{ctx: ctx, exec: e, left: left, right: n.Right, leftVars: algebra.Variables(n.Left)}, nil

	case *algebra.Filter:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &filterIterator{input: input, expression: n.Expression}, nil

	case *algebra.Extend:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &extendIterator{input: input, variable: n.Variable, expression: n.Expression}, nil

	case *algebra.Group:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &groupIterator{input: input, node: n}, nil

	case *algebra.OrderBy:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &orderByIterator{input: input, conditions: n.Conditions}, nil

	case *algebra.Slice:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &sliceIterator{input: input, offset: n.Offset, limit: n.Limit}, nil

	case *algebra.Project:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &projectIterator{input: input, variables: n.Variables}, nil

	case *algebra.Distinct:
		input, err := e.iterator(ctx, n.Input, seed)
		if err != nil {
			return nil, err
		}
		return &distinctIterator{input: input, seen: make(map[string]struct{})}, nil

	default:
		return nil, graperr.Errorf(graperr.CodeExecUnsupported, "unsupported plan node %T", node)
	}
}

// iterator produces solutions one at a time; a nil binding with a nil
// error signals exhaustion.
type iterator interface {
	Next() (*store.Binding, error)
}

func drain(it iterator) ([]*store.Binding, error) {
	var out []*store.Binding
	for {
		b, err := it.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return out, nil
		}
		out = append(out, b)
	}
}

func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return graperr.Wrap(graperr.CodeExecCancelled, ctx.Err(), "query cancelled")
	default:
		return nil
	}
}

// bgpIterator evaluates triple patterns left to right by backtracking.
// Variables bound by earlier patterns (or the seed) turn into concrete
// terms in later Match calls.
type bgpIterator struct {
	ctx      context.Context
	source   store.Source
	patterns []*parser.TriplePattern
	seed     *store.Binding

	frames  []bgpFrame
	started bool
	done    bool
}

type bgpFrame struct {
	matches []*store.Binding
	next    int
}

func (it *bgpIterator) Next() (*store.Binding, error) {
	if it.done {
		return nil, nil
	}
	if !it.started {
		it.started = true
		if len(it.patterns) == 0 {
			it.done = true
			return it.seed, nil
		}
		matches, err := it.match(it.patterns[0], it.seed)
		if err != nil {
			return nil, err
		}
		it.frames = append(it.frames, bgpFrame{matches: matches})
	}

	for {
		if len(it.frames) == 0 {
			it.done = true
			return nil, nil
		}
		top := &it.frames[len(it.frames)-1]
		if top.next >= len(top.matches) {
			it.frames = it.frames[:len(it.frames)-1]
			continue
		}
		b := top.matches[top.next]
		top.next++

		if len(it.frames) == len(it.patterns) {
			return b, nil
		}
		matches, err := it.match(it.patterns[len(it.frames)], b)
		if err != nil {
			return nil, err
		}
		it.frames = append(it.frames, bgpFrame{matches: matches})
	}
}

// match finds the triples matching one pattern under a binding and
// extends the binding per match.
func (it *bgpIterator) match(tp *parser.TriplePattern, b *store.Binding) ([]*store.Binding, error) {
	if err := cancelled(it.ctx); err != nil {
		return nil, err
	}

	s := resolve(tp.Subject, b)
	p := resolve(tp.Predicate, b)
	o := resolve(tp.Object, b)
	triples, err := it.source.Match(s, p, o)
	if err != nil {
		return nil, err
	}

	out := make([]*store.Binding, 0, len(triples))
	for _, triple := range triples {
		extended := b
		cloned := false
		ok := true
		for _, pos := range [...]struct {
			tv   parser.TermOrVariable
			term rdf.Term
		}{
			{tp.Subject, triple.Subject},
			{tp.Predicate, triple.Predicate},
			{tp.Object, triple.Object},
		} {
			if !pos.tv.IsVariable() {
				continue
			}
			name := pos.tv.Variable.Name
			if existing, bound := extended.Get(name); bound {
				// Repeated variable within the pattern.
				if existing.String() != pos.term.String() {
					ok = false
					break
				}
				continue
			}
			if !cloned {
				extended = extended.Clone()
				cloned = true
			}
			extended.Bind(name, pos.term)
		}
		if ok {
			out = append(out, extended)
		}
	}
	return out, nil
}

// resolve substitutes a bound variable with its term; unbound variables
// stay nil wildcards for Match.
func resolve(tv parser.TermOrVariable, b *store.Binding) rdf.Term {
	if !tv.IsVariable() {
		return tv.Term
	}
	if term, ok := b.Get(tv.Variable.Name); ok {
		return term
	}
	return nil
}
