package kv

import (
	"sort"
	"testing"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

func openEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return e
}

func triple(t *testing.T, s, p, o string) *rdf.Triple {
	t.Helper()
	tr, err := rdf.NewTriple(
		rdf.MustIRI("http://example.org/"+s),
		rdf.MustIRI("http://example.org/"+p),
		rdf.NewLiteral(o),
	)
	if err != nil {
		t.Fatalf("NewTriple() error = %v", err)
	}
	return tr
}

func TestInsertMatchDelete(t *testing.T) {
	e := openEngine(t)
	tr := triple(t, "s", "p", "o")

	if err := e.Insert(tr); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	found, err := e.Contains(tr)
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !found {
		t.Fatal("Contains() = false after Insert")
	}

	got, err := e.Match(tr.Subject, nil, nil)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(got) != 1 || got[0].String() != tr.String() {
		t.Errorf("Match() = %v, want [%s]", got, tr.String())
	}

	if err := e.Delete(tr); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d after Delete, want 0", e.Len())
	}
}

func TestMatchAllPatternShapes(t *testing.T) {
	e := openEngine(t)
	facts := []*rdf.Triple{
		triple(t, "a", "p", "1"),
		triple(t, "a", "q", "2"),
		triple(t, "b", "p", "1"),
	}
	for _, tr := range facts {
		if err := e.Insert(tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	a := rdf.MustIRI("http://example.org/a")
	p := rdf.MustIRI("http://example.org/p")
	one := rdf.NewLiteral("1")

	tests := []struct {
		name    string
		s, p, o rdf.Term
		want    int
	}{
		{"spo", a, p, one, 1},
		{"sp", a, p, nil, 1},
		{"so", a, nil, one, 1},
		{"po", nil, p, one, 2},
		{"s", a, nil, nil, 2},
		{"p", nil, p, nil, 2},
		{"o", nil, nil, one, 2},
		{"all", nil, nil, nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Match(tt.s, tt.p, tt.o)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len(Match()) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPredicateCount(t *testing.T) {
	e := openEngine(t)
	for _, tr := range []*rdf.Triple{
		triple(t, "a", "p", "1"),
		triple(t, "b", "p", "2"),
		triple(t, "c", "q", "3"),
	} {
		if err := e.Insert(tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if got := e.PredicateCount(rdf.MustIRI("http://example.org/p")); got != 2 {
		t.Errorf("PredicateCount(p) = %d, want 2", got)
	}
	if got := e.PredicateCount(rdf.MustIRI("http://example.org/missing")); got != 0 {
		t.Errorf("PredicateCount(missing) = %d, want 0", got)
	}
}

func TestInsertIdempotent(t *testing.T) {
	e := openEngine(t)
	tr := triple(t, "s", "p", "o")
	for i := 0; i < 3; i++ {
		if err := e.Insert(tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d after repeated Insert, want 1", e.Len())
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	e := openEngine(t)
	terms := []rdf.Term{
		rdf.NewLiteral("plain with \"quotes\" and\nnewline"),
		rdf.NewLangLiteral("hallo", "de"),
		rdf.NewIntegerLiteral(42),
	}
	s := rdf.MustIRI("http://example.org/s")
	p := rdf.MustIRI("http://example.org/p")
	for _, o := range terms {
		tr, err := rdf.NewTriple(s, p, o)
		if err != nil {
			t.Fatalf("NewTriple() error = %v", err)
		}
		if err := e.Insert(tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	got, err := e.Match(s, p, nil)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(got) != len(terms) {
		t.Fatalf("len(Match()) = %d, want %d", len(got), len(terms))
	}
	want := make([]string, 0, len(terms))
	for _, o := range terms {
		want = append(want, o.String())
	}
	have := make([]string, 0, len(got))
	for _, tr := range got {
		have = append(have, tr.Object.String())
	}
	sort.Strings(want)
	sort.Strings(have)
	for i := range want {
		if have[i] != want[i] {
			t.Errorf("object %d = %s, want %s", i, have[i], want[i])
		}
	}
}

// TestAgreesWithMemoryStore runs the same pattern queries against the
// kv engine and the native store and expects identical result sets.
func TestAgreesWithMemoryStore(t *testing.T) {
	e := openEngine(t)
	mem := store.New(store.Config{})

	facts := []*rdf.Triple{
		triple(t, "alice", "knows", "bob"),
		triple(t, "alice", "name", "Alice"),
		triple(t, "bob", "name", "Bob"),
		triple(t, "bob", "knows", "carol"),
	}
	for _, tr := range facts {
		if err := e.Insert(tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		mem.Add(tr)
	}

	patterns := []struct{ s, p, o rdf.Term }{
		{nil, nil, nil},
		{rdf.MustIRI("http://example.org/alice"), nil, nil},
		{nil, rdf.MustIRI("http://example.org/name"), nil},
		{nil, nil, rdf.NewLiteral("Bob")},
		{rdf.MustIRI("http://example.org/bob"), rdf.MustIRI("http://example.org/knows"), nil},
	}
	for _, pat := range patterns {
		fromKV, err := e.Match(pat.s, pat.p, pat.o)
		if err != nil {
			t.Fatalf("kv Match() error = %v", err)
		}
		fromMem, err := mem.Match(pat.s, pat.p, pat.o)
		if err != nil {
			t.Fatalf("store Match() error = %v", err)
		}
		if len(fromKV) != len(fromMem) {
			t.Errorf("pattern %v: kv %d results, store %d", pat, len(fromKV), len(fromMem))
			continue
		}
		kvSet := make(map[string]struct{}, len(fromKV))
		for _, tr := range fromKV {
			kvSet[tr.String()] = struct{}{}
		}
		for _, tr := range fromMem {
			if _, ok := kvSet[tr.String()]; !ok {
				t.Errorf("pattern %v: store triple %s missing from kv results", pat, tr.String())
			}
		}
	}
}
