package store

import (
	"sort"
)

// Statistics is a read-only snapshot of aggregate store counts. The value
// handed out is a copy; mutating it does not touch the cache.
type Statistics struct {
	TotalTriples     int
	UniqueSubjects   int
	UniquePredicates int
	UniqueObjects    int
	TopPredicates    []PredicateFrequency
}

// PredicateFrequency pairs a predicate's canonical form with its usage count.
type PredicateFrequency struct {
	Predicate string
	Count     int64
}

const topPredicateLimit = 10

// Statistics returns aggregate counts, recomputing the cached snapshot
// only when the store changed since the last call.
func (s *Store) Statistics() Statistics {
	if !s.statsValid {
		s.refreshStats()
	}
	out := s.stats
	out.TopPredicates = append([]PredicateFrequency(nil), s.stats.TopPredicates...)
	return out
}

// PredicateStats returns per-predicate triple counts keyed by the
// predicate's canonical string form. The returned map is a copy.
func (s *Store) PredicateStats() map[string]int64 {
	if !s.statsValid {
		s.refreshStats()
	}
	out := make(map[string]int64, len(s.predStats))
	for k, v := range s.predStats {
		out[k] = v
	}
	return out
}

func (s *Store) refreshStats() {
	s.stats = Statistics{
		TotalTriples:     len(s.triples),
		UniqueSubjects:   len(s.spo),
		UniquePredicates: len(s.pos),
		UniqueObjects:    len(s.osp),
	}

	s.predStats = make(map[string]int64, len(s.predCounts))
	freqs := make([]PredicateFrequency, 0, len(s.predCounts))
	for id, count := range s.predCounts {
		name := s.terms[id].String()
		s.predStats[name] = count
		freqs = append(freqs, PredicateFrequency{Predicate: name, Count: count})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Predicate < freqs[j].Predicate
	})
	if len(freqs) > topPredicateLimit {
		freqs = freqs[:topPredicateLimit]
	}
	s.stats.TopPredicates = freqs
	s.statsValid = true
}
