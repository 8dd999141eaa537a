package executor

import (
	"context"
	"sort"
	"strings"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/evaluator"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

// joinIterator re-runs the right subtree seeded with each left
// solution; the right side's results already extend the left binding,
// so they are the joined solutions.
type joinIterator struct {
	ctx   context.Context
	exec  *Executor
	left  iterator
	right algebra.Node

	current iterator
}

func (it *joinIterator) Next() (*store.Binding, error) {
	for {
		if it.current != nil {
			b, err := it.current.Next()
			if err != nil {
				return nil, err
			}
			if b != nil {
				return b, nil
			}
			it.current = nil
		}
		lb, err := it.left.Next()
		if err != nil {
			return nil, err
		}
		if lb == nil {
			return nil, nil
		}
		if err := cancelled(it.ctx); err != nil {
			return nil, err
		}
		it.current, err = it.exec.iterator(it.ctx, it.right, lb)
		if err != nil {
			return nil, err
		}
	}
}

// leftJoinIterator keeps a left solution even when the right side
// produces nothing compatible. With a join filter set, only right
// solutions passing it count as matches.
type leftJoinIterator struct {
	ctx    context.Context
	exec   *Executor
	left   iterator
	right  algebra.Node
	filter parser.Expression

	current iterator
	pending *store.Binding // left solution currently being extended
	matched bool
}

func (it *leftJoinIterator) Next() (*store.Binding, error) {
	for {
		if it.current != nil {
			for {
				b, err := it.current.Next()
				if err != nil {
					return nil, err
				}
				if b == nil {
					break
				}
				if it.filter != nil && !passes(it.filter, b) {
					continue
				}
				it.matched = true
				return b, nil
			}
			it.current = nil
			if !it.matched {
				bare := it.pending
				it.pending = nil
				return bare, nil
			}
			it.pending = nil
		}

		lb, err := it.left.Next()
		if err != nil {
			return nil, err
		}
		if lb == nil {
			return nil, nil
		}
		if err := cancelled(it.ctx); err != nil {
			return nil, err
		}
		it.pending = lb
		it.matched = false
		it.current, err = it.exec.iterator(it.ctx, it.right, lb)
		if err != nil {
			return nil, err
		}
	}
}

// unionIterator concatenates both branches under the same seed,
// preserving bag semantics.
type unionIterator struct {
	ctx   context.Context
	exec  *Executor
	right algebra.Node
	seed  *store.Binding

	current iterator
	onRight bool
}

func (it *unionIterator) Next() (*store.Binding, error) {
	for {
		b, err := it.current.Next()
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
		if it.onRight {
			return nil, nil
		}
		it.onRight = true
		it.current, err = it.exec.iterator(it.ctx, it.right, it.seed)
		if err != nil {
			return nil, err
		}
	}
}

// minusIterator removes a left solution when some right solution is
// compatible with it and shares at least one bound variable. A right
// solution with a disjoint domain removes nothing. The right side is
// evaluated once, from an empty seed: seed bindings flowing into the
// group must not reach the right operand, or variables bound outside
// the MINUS would count as shared. The comparison likewise considers
// only the left operand's own variables.
type minusIterator struct {
	ctx      context.Context
	exec     *Executor
	left     iterator
	right    algebra.Node
	leftVars map[string]struct{}

	excluded     []*store.Binding
	materialized bool
}

func (it *minusIterator) Next() (*store.Binding, error) {
	if !it.materialized {
		rightIter, err := it.exec.iterator(it.ctx, it.right, store.NewBinding())
		if err != nil {
			return nil, err
		}
		it.excluded, err = drain(rightIter)
		if err != nil {
			return nil, err
		}
		it.materialized = true
	}

	for {
		b, err := it.left.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		own := store.NewBinding()
		for _, name := range b.Names() {
			if _, ok := it.leftVars[name]; !ok {
				continue
			}
			if term, bound := b.Get(name); bound {
				own.Bind(name, term)
			}
		}
		removed := false
		for _, r := range it.excluded {
			if own.CompatibleWith(r) && own.SharesVariable(r) {
				removed = true
				break
			}
		}
		if !removed {
			return b, nil
		}
	}
}

// filterIterator keeps solutions whose expression is true; evaluation
// errors count as false.
type filterIterator struct {
	input      iterator
	expression parser.Expression
}

func (it *filterIterator) Next() (*store.Binding, error) {
	for {
		b, err := it.input.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		if passes(it.expression, b) {
			return b, nil
		}
	}
}

func passes(expr parser.Expression, b *store.Binding) bool {
	val, err := evaluator.Evaluate(expr, b)
	if err != nil {
		return false
	}
	truth, err := evaluator.EffectiveBooleanValue(val)
	return err == nil && truth
}

// extendIterator adds a computed binding (BIND). An evaluation error
// leaves the variable unbound; a conflicting existing binding drops the
// solution.
type extendIterator struct {
	input      iterator
	variable   string
	expression parser.Expression
}

func (it *extendIterator) Next() (*store.Binding, error) {
	for {
		b, err := it.input.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		val, evalErr := evaluator.Evaluate(it.expression, b)
		if evalErr != nil {
			return b, nil
		}
		if existing, bound := b.Get(it.variable); bound {
			if existing.String() == val.String() {
				return b, nil
			}
			continue
		}
		extended := b.Clone()
		extended.Bind(it.variable, val)
		return extended, nil
	}
}

// groupIterator materializes its input, partitions it by the grouping
// variables and emits one solution per group. Without grouping
// variables there is always exactly one group, even over empty input.
type groupIterator struct {
	input iterator
	node  *algebra.Group

	results []*store.Binding
	next    int
	grouped bool
}

type groupState struct {
	representative *store.Binding
	accumulators   []evaluator.Accumulator
}

func (it *groupIterator) Next() (*store.Binding, error) {
	if !it.grouped {
		if err := it.group(); err != nil {
			return nil, err
		}
		it.grouped = true
	}
	if it.next >= len(it.results) {
		return nil, nil
	}
	b := it.results[it.next]
	it.next++
	return b, nil
}

func (it *groupIterator) group() error {
	groups := make(map[string]*groupState)
	var order []string

	newState := func(representative *store.Binding) *groupState {
		state := &groupState{representative: representative}
		for _, agg := range it.node.Aggregations {
			state.accumulators = append(state.accumulators, evaluator.NewAccumulator(agg))
		}
		return state
	}

	for {
		b, err := it.input.Next()
		if err != nil {
			return err
		}
		if b == nil {
			break
		}
		key := groupKey(it.node.By, b)
		state, ok := groups[key]
		if !ok {
			state = newState(b)
			groups[key] = state
			order = append(order, key)
		}
		for _, acc := range state.accumulators {
			acc.Add(b)
		}
	}

	// Aggregates over an ungrouped empty input still produce one row.
	if len(order) == 0 && len(it.node.By) == 0 {
		key := groupKey(nil, store.NewBinding())
		groups[key] = newState(store.NewBinding())
		order = append(order, key)
	}

	for _, key := range order {
		state := groups[key]
		out := store.NewBinding()
		for _, name := range it.node.By {
			if term, ok := state.representative.Get(name); ok {
				out.Bind(name, term)
			}
		}
		for i, agg := range it.node.Aggregations {
			if result := state.accumulators[i].Result(); result != nil {
				out.Bind(agg.Alias, result)
			}
		}
		it.results = append(it.results, out)
	}
	return nil
}

func groupKey(by []string, b *store.Binding) string {
	parts := make([]string, 0, len(by))
	for _, name := range by {
		if term, ok := b.Get(name); ok {
			parts = append(parts, term.String())
		} else {
			parts = append(parts, "")
		}
	}
	return strings.Join(parts, "\x00")
}

// orderByIterator materializes and stably sorts its input. Unbound
// values order before bound ones; incomparable bound values fall back
// to their canonical string forms.
type orderByIterator struct {
	input      iterator
	conditions []*parser.OrderCondition

	sorted  []*store.Binding
	next    int
	started bool
}

func (it *orderByIterator) Next() (*store.Binding, error) {
	if !it.started {
		all, err := drain(it.input)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(all, func(i, j int) bool {
			return it.less(all[i], all[j])
		})
		it.sorted = all
		it.started = true
	}
	if it.next >= len(it.sorted) {
		return nil, nil
	}
	b := it.sorted[it.next]
	it.next++
	return b, nil
}

func (it *orderByIterator) less(a, b *store.Binding) bool {
	for _, cond := range it.conditions {
		av, aok := a.Get(cond.Variable.Name)
		bv, bok := b.Get(cond.Variable.Name)
		var cmp int
		switch {
		case !aok && !bok:
			continue
		case !aok:
			cmp = -1
		case !bok:
			cmp = 1
		default:
			var err error
			cmp, err = evaluator.CompareTerms(av, bv)
			if err != nil {
				cmp = strings.Compare(av.String(), bv.String())
			}
		}
		if cmp == 0 {
			continue
		}
		if !cond.Ascending {
			cmp = -cmp
		}
		return cmp < 0
	}
	return false
}

// sliceIterator implements OFFSET/LIMIT with early termination: once
// the limit is reached no further input is pulled.
type sliceIterator struct {
	input   iterator
	offset  int
	limit   int
	skipped int
	emitted int
}

func (it *sliceIterator) Next() (*store.Binding, error) {
	if it.limit >= 0 && it.emitted >= it.limit {
		return nil, nil
	}
	for it.skipped < it.offset {
		b, err := it.input.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		it.skipped++
	}
	b, err := it.input.Next()
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	it.emitted++
	return b, nil
}

// projectIterator narrows solutions to the projected variables. A nil
// variable list (SELECT *) keeps every variable except the generated
// ones introduced by property path desugaring.
type projectIterator struct {
	input     iterator
	variables []string
}

func (it *projectIterator) Next() (*store.Binding, error) {
	b, err := it.input.Next()
	if err != nil || b == nil {
		return nil, err
	}
	if it.variables == nil {
		out := store.NewBinding()
		for _, name := range b.Names() {
			if parser.IsPathVariable(name) {
				continue
			}
			if term, ok := b.Get(name); ok {
				out.Bind(name, term)
			}
		}
		return out, nil
	}
	out := store.NewBinding()
	for _, name := range it.variables {
		if term, ok := b.Get(name); ok {
			out.Bind(name, term)
		}
	}
	return out, nil
}

// distinctIterator drops solutions whose signature was seen before.
type distinctIterator struct {
	input iterator
	seen  map[string]struct{}
}

func (it *distinctIterator) Next() (*store.Binding, error) {
	for {
		b, err := it.input.Next()
		if err != nil || b == nil {
			return nil, err
		}
		sig := b.Signature()
		if _, dup := it.seen[sig]; dup {
			continue
		}
		it.seen[sig] = struct{}{}
		return b, nil
	}
}
