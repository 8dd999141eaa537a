package optimizer

import (
	"reflect"
	"testing"

	"github.com/kitelev/exocortex-graph/internal/sparql/algebra"
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// fixedStats reports a fixed dataset size and per-predicate counts.
type fixedStats struct {
	total int
	freq  map[string]int64
}

func (s *fixedStats) Len() int { return s.total }

func (s *fixedStats) PredicateCount(p rdf.Term) int64 {
	if n, ok := s.freq[p.String()]; ok {
		return n
	}
	return 0
}

func plan(t *testing.T, query string) algebra.Node {
	t.Helper()
	q, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	node, err := algebra.Translate(q)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	return node
}

func TestReorderBGPBySelectivity(t *testing.T) {
	stats := &fixedStats{
		total: 1000,
		freq: map[string]int64{
			"<http://example.org/rare>":   3,
			"<http://example.org/common>": 900,
		},
	}
	node := plan(t, `SELECT * WHERE {
		?s <http://example.org/common> ?o .
		?s <http://example.org/rare> ?v .
	}`)
	opt := New(stats).Optimize(node)
	bgp := opt.(*algebra.Project).Input.(*algebra.BGP)
	if got := bgp.Patterns[0].Predicate.Term.String(); got != "<http://example.org/rare>" {
		t.Errorf("first pattern predicate = %s, want the rare one", got)
	}
}

func TestReorderPrefersBoundPositions(t *testing.T) {
	stats := &fixedStats{total: 1000}
	node := plan(t, `SELECT * WHERE {
		?s ?p ?o .
		<http://example.org/x> <http://example.org/p> ?o .
	}`)
	opt := New(stats).Optimize(node)
	bgp := opt.(*algebra.Project).Input.(*algebra.BGP)
	if bgp.Patterns[0].Subject.IsVariable() {
		t.Error("the doubly-bound pattern should evaluate first")
	}
}

func TestFilterPushdown(t *testing.T) {
	stats := &fixedStats{total: 10}
	node := plan(t, `SELECT * WHERE {
		?s <http://example.org/p> ?a .
		OPTIONAL { ?s <http://example.org/q> ?b }
	}`)
	// Build Filter(Join(...)) by hand: the filter only references the
	// left side, so it must sink below the join.
	lj := node.(*algebra.Project).Input.(*algebra.LeftJoin)
	joined := &algebra.Filter{
		Input: &algebra.Join{Left: lj.Left, Right: lj.Right},
		Expression: &parser.BinaryExpression{
			Left:     &parser.VariableExpression{Variable: &parser.Variable{Name: "a"}},
			Operator: parser.OpGreaterThan,
			Right:    &parser.TermExpression{Term: rdf.NewIntegerLiteral(1)},
		},
	}
	opt := New(stats).Optimize(joined)
	join, ok := opt.(*algebra.Join)
	if !ok {
		t.Fatalf("root = %T, want *Join after pushdown", opt)
	}
	if _, ok := join.Left.(*algebra.Filter); !ok {
		t.Errorf("join left = %T, want *Filter", join.Left)
	}
}

func TestFilterStaysWhenSpanningBothSides(t *testing.T) {
	stats := &fixedStats{total: 10}
	node := plan(t, `SELECT * WHERE { ?s <http://example.org/p> ?a }`)
	bgp := node.(*algebra.Project).Input
	joined := &algebra.Filter{
		Input: &algebra.Join{Left: bgp, Right: plan(t, `ASK { ?x <http://example.org/q> ?b }`).(*algebra.Slice).Input},
		Expression: &parser.BinaryExpression{
			Left:     &parser.VariableExpression{Variable: &parser.Variable{Name: "a"}},
			Operator: parser.OpEqual,
			Right:    &parser.VariableExpression{Variable: &parser.Variable{Name: "b"}},
		},
	}
	opt := New(stats).Optimize(joined)
	if _, ok := opt.(*algebra.Filter); !ok {
		t.Errorf("root = %T, want *Filter to stay above the join", opt)
	}
}

func TestSlicePushdownIntoUnion(t *testing.T) {
	stats := &fixedStats{total: 100}
	node := plan(t, `SELECT * WHERE {
		{ ?s <http://example.org/p> ?o } UNION { ?s <http://example.org/q> ?o }
	} LIMIT 5 OFFSET 2`)
	opt := New(stats).Optimize(node)
	slice, ok := opt.(*algebra.Slice)
	if !ok {
		t.Fatalf("root = %T, want *Slice", opt)
	}
	if slice.Limit != 5 || slice.Offset != 2 {
		t.Errorf("outer slice = %d/%d, want limit 5 offset 2", slice.Limit, slice.Offset)
	}
	u := slice.Input.(*algebra.Project).Input.(*algebra.Union)
	for _, branch := range []algebra.Node{u.Left, u.Right} {
		inner, ok := branch.(*algebra.Slice)
		if !ok {
			t.Fatalf("branch = %T, want *Slice", branch)
		}
		if inner.Limit != 7 || inner.Offset != 0 {
			t.Errorf("branch slice = %d/%d, want limit 7 offset 0", inner.Limit, inner.Offset)
		}
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	stats := &fixedStats{
		total: 500,
		freq: map[string]int64{
			"<http://example.org/p>": 10,
			"<http://example.org/q>": 400,
		},
	}
	queries := []string{
		`SELECT * WHERE { ?s <http://example.org/q> ?o . ?s <http://example.org/p> ?v . FILTER(?v > 1) }`,
		`SELECT ?s WHERE { { ?s <http://example.org/p> ?o } UNION { ?s <http://example.org/q> ?o } } LIMIT 3`,
		`SELECT ?s WHERE { ?s ?p ?o . OPTIONAL { ?s <http://example.org/p> ?v } MINUS { ?s <http://example.org/q> ?o } }`,
	}
	opt := New(stats)
	for _, query := range queries {
		once := opt.Optimize(plan(t, query))
		twice := opt.Optimize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("optimizer not idempotent for %q:\nonce:  %s\ntwice: %s", query, once, twice)
		}
	}
}
