package store

import (
	"fmt"
	"testing"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

func TestStatistics(t *testing.T) {
	s := New(Config{})
	s.Add(triple(t, "alice", "knows", iri("bob")))
	s.Add(triple(t, "alice", "knows", iri("carol")))
	s.Add(triple(t, "bob", "name", rdf.NewLiteral("Bob")))

	stats := s.Statistics()
	if stats.TotalTriples != 3 {
		t.Errorf("TotalTriples = %d, want 3", stats.TotalTriples)
	}
	if stats.UniqueSubjects != 2 {
		t.Errorf("UniqueSubjects = %d, want 2", stats.UniqueSubjects)
	}
	if stats.UniquePredicates != 2 {
		t.Errorf("UniquePredicates = %d, want 2", stats.UniquePredicates)
	}
	if stats.UniqueObjects != 3 {
		t.Errorf("UniqueObjects = %d, want 3", stats.UniqueObjects)
	}
	if len(stats.TopPredicates) != 2 {
		t.Fatalf("TopPredicates has %d entries, want 2", len(stats.TopPredicates))
	}
	if stats.TopPredicates[0].Predicate != "<http://example.org/knows>" || stats.TopPredicates[0].Count != 2 {
		t.Errorf("TopPredicates[0] = %+v, want knows/2", stats.TopPredicates[0])
	}
}

func TestStatisticsInvalidation(t *testing.T) {
	s := New(Config{})
	tr := triple(t, "alice", "name", rdf.NewLiteral("Alice"))
	s.Add(tr)

	if got := s.Statistics().TotalTriples; got != 1 {
		t.Fatalf("TotalTriples = %d, want 1", got)
	}
	s.Remove(tr)
	if got := s.Statistics().TotalTriples; got != 0 {
		t.Errorf("TotalTriples = %d after removal, want 0", got)
	}
}

func TestStatisticsSnapshotIsCopy(t *testing.T) {
	s := New(Config{})
	s.Add(triple(t, "alice", "name", rdf.NewLiteral("Alice")))

	stats := s.Statistics()
	stats.TopPredicates[0].Count = 999
	if got := s.Statistics().TopPredicates[0].Count; got != 1 {
		t.Errorf("cached Count = %d after mutating a snapshot, want 1", got)
	}
}

func TestTopPredicatesLimitAndOrder(t *testing.T) {
	s := New(Config{})
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			s.Add(triple(t, fmt.Sprintf("s%d", j), fmt.Sprintf("p%02d", i), rdf.NewIntegerLiteral(int64(i))))
		}
	}

	top := s.Statistics().TopPredicates
	if len(top) != topPredicateLimit {
		t.Fatalf("TopPredicates has %d entries, want %d", len(top), topPredicateLimit)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Count > top[i-1].Count {
			t.Fatalf("TopPredicates not sorted by count: %+v before %+v", top[i-1], top[i])
		}
	}
	if top[0].Predicate != "<http://example.org/p14>" || top[0].Count != 15 {
		t.Errorf("TopPredicates[0] = %+v, want p14/15", top[0])
	}
}

func TestPredicateStats(t *testing.T) {
	s := New(Config{})
	s.Add(triple(t, "alice", "knows", iri("bob")))
	s.Add(triple(t, "bob", "knows", iri("carol")))

	stats := s.PredicateStats()
	if got := stats["<http://example.org/knows>"]; got != 2 {
		t.Errorf("knows count = %d, want 2", got)
	}

	// The returned map is a copy.
	stats["<http://example.org/knows>"] = 42
	if got := s.PredicateStats()["<http://example.org/knows>"]; got != 2 {
		t.Errorf("cached count = %d after mutating a copy, want 2", got)
	}
}
