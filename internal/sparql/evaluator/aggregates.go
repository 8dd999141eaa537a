package evaluator

import (
	"strconv"
	"strings"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

// DefaultGroupConcatSeparator joins GROUP_CONCAT values when the query
// names no separator.
const DefaultGroupConcatSeparator = " "

// Accumulator folds one aggregate over the solutions of a group.
// Absent and non-applicable values are skipped, so a group of entirely
// unbound rows still yields a well-defined result.
type Accumulator interface {
	Add(b *store.Binding)
	Result() rdf.Term
}

// NewAccumulator builds the accumulator for one aggregation.
func NewAccumulator(agg *algebra.Aggregation) Accumulator {
	var acc Accumulator
	switch agg.Func {
	case parser.AggCount:
		acc = &countAccumulator{variable: agg.Var, star: agg.Star}
	case parser.AggSum:
		acc = &sumAccumulator{variable: agg.Var}
	case parser.AggAvg:
		acc = &avgAccumulator{sum: sumAccumulator{variable: agg.Var}}
	case parser.AggMin:
		acc = &extremumAccumulator{variable: agg.Var, min: true}
	case parser.AggMax:
		acc = &extremumAccumulator{variable: agg.Var}
	case parser.AggGroupConcat:
		sep := agg.Separator
		if sep == "" {
			sep = DefaultGroupConcatSeparator
		}
		acc = &concatAccumulator{variable: agg.Var, separator: sep}
	default:
		acc = &countAccumulator{star: true}
	}
	if agg.Distinct {
		return &distinctAccumulator{variable: agg.Var, star: agg.Star, inner: acc, seen: make(map[string]struct{})}
	}
	return acc
}

// distinctAccumulator forwards each distinct value once, keyed by the
// term's canonical string form.
type distinctAccumulator struct {
	variable string
	star     bool
	inner    Accumulator
	seen     map[string]struct{}
}

func (a *distinctAccumulator) Add(b *store.Binding) {
	key := ""
	if a.star {
		key = b.Signature()
	} else {
		term, ok := b.Get(a.variable)
		if !ok {
			return
		}
		key = term.String()
	}
	if _, dup := a.seen[key]; dup {
		return
	}
	a.seen[key] = struct{}{}
	a.inner.Add(b)
}

func (a *distinctAccumulator) Result() rdf.Term { return a.inner.Result() }

type countAccumulator struct {
	variable string
	star     bool
	count    int64
}

func (a *countAccumulator) Add(b *store.Binding) {
	if a.star {
		a.count++
		return
	}
	if _, ok := b.Get(a.variable); ok {
		a.count++
	}
}

func (a *countAccumulator) Result() rdf.Term { return rdf.NewIntegerLiteral(a.count) }

// sumAccumulator adds numeric values, staying in integer space until a
// non-integer value appears.
type sumAccumulator struct {
	variable   string
	intSum     int64
	floatSum   float64
	sawFloat   bool
	sawNumeric bool
}

func (a *sumAccumulator) Add(b *store.Binding) {
	term, ok := b.Get(a.variable)
	if !ok {
		return
	}
	n, ok := numericValue(term)
	if !ok {
		return
	}
	a.sawNumeric = true
	if n.isInteger && !a.sawFloat {
		a.intSum += n.integer
		return
	}
	if !a.sawFloat {
		a.floatSum = float64(a.intSum)
		a.sawFloat = true
	}
	a.floatSum += n.asFloat()
}

func (a *sumAccumulator) Result() rdf.Term {
	if a.sawFloat {
		return rdf.NewDoubleLiteral(a.floatSum)
	}
	return rdf.NewIntegerLiteral(a.intSum)
}

type avgAccumulator struct {
	sum   sumAccumulator
	count int64
}

func (a *avgAccumulator) Add(b *store.Binding) {
	term, ok := b.Get(a.sum.variable)
	if !ok {
		return
	}
	if _, ok := numericValue(term); !ok {
		return
	}
	a.sum.Add(b)
	a.count++
}

func (a *avgAccumulator) Result() rdf.Term {
	if a.count == 0 {
		return rdf.NewIntegerLiteral(0)
	}
	var total float64
	if a.sum.sawFloat {
		total = a.sum.floatSum
	} else {
		total = float64(a.sum.intSum)
	}
	avg := total / float64(a.count)
	if !a.sum.sawFloat && avg == float64(int64(avg)) {
		return rdf.NewIntegerLiteral(int64(avg))
	}
	return rdf.NewDoubleLiteral(avg)
}

// extremumAccumulator tracks MIN or MAX over literal values: numeric
// ordering when both lexical forms parse as numbers, lexicographic
// ordering otherwise. Non-literal bindings are skipped.
type extremumAccumulator struct {
	variable string
	min      bool
	best     *rdf.Literal
}

func (a *extremumAccumulator) Add(b *store.Binding) {
	term, ok := b.Get(a.variable)
	if !ok {
		return
	}
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return
	}
	if a.best == nil {
		a.best = lit
		return
	}
	cmp := compareLexicalForms(lit.Value, a.best.Value)
	if a.min && cmp < 0 || !a.min && cmp > 0 {
		a.best = lit
	}
}

func (a *extremumAccumulator) Result() rdf.Term {
	if a.best == nil {
		return nil
	}
	return a.best
}

// compareLexicalForms orders two lexical forms numerically when both
// parse as numbers, regardless of datatype, and lexicographically
// otherwise.
func compareLexicalForms(a, b string) int {
	av, aerr := strconv.ParseFloat(a, 64)
	bv, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return compareFloat64(av, bv)
	}
	return strings.Compare(a, b)
}

type concatAccumulator struct {
	variable  string
	separator string
	parts     []string
}

func (a *concatAccumulator) Add(b *store.Binding) {
	term, ok := b.Get(a.variable)
	if !ok {
		return
	}
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return
	}
	a.parts = append(a.parts, lit.Value)
}

func (a *concatAccumulator) Result() rdf.Term {
	return rdf.NewLiteral(strings.Join(a.parts, a.separator))
}
