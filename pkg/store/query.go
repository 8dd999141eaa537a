package store

import (
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// Source is the read surface the query executor evaluates against. Both
// the in-memory store and the KV-backed engine implement it.
type Source interface {
	// Match returns the triples satisfying the bound positions; nil
	// arguments are wildcards.
	Match(subject, predicate, object rdf.Term) ([]*rdf.Triple, error)

	// Len returns the total triple count.
	Len() int

	// PredicateCount returns the number of triples using the predicate,
	// for selectivity estimation.
	PredicateCount(predicate rdf.Term) int64
}

// Query returns the triples satisfying the bound positions; nil arguments
// are wildcards. The most selective index combination available services
// the call: a fully bound pattern is a direct hit on the base set, one or
// two bound positions walk the matching nested index, and only the fully
// unbound pattern scans everything.
func (s *Store) Query(subject, predicate, object rdf.Term) []*rdf.Triple {
	sBound, pBound, oBound := subject != nil, predicate != nil, object != nil

	// Fully bound: direct membership check.
	if sBound && pBound && oBound {
		t, err := rdf.NewTriple(subject, predicate, object)
		if err != nil {
			return nil
		}
		if stored, ok := s.triples[t.Key()]; ok {
			return []*rdf.Triple{stored}
		}
		return nil
	}

	resolve := func(term rdf.Term) (termID, bool) {
		if term == nil {
			return 0, true
		}
		return s.lookup(term)
	}
	subID, ok := resolve(subject)
	if !ok {
		return nil
	}
	predID, ok := resolve(predicate)
	if !ok {
		return nil
	}
	objID, ok := resolve(object)
	if !ok {
		return nil
	}

	switch {
	case sBound && pBound:
		return collectLeaf(s.spo[subID][predID])
	case pBound && oBound:
		return collectLeaf(s.pos[predID][objID])
	case sBound && oBound:
		return collectLeaf(s.osp[objID][subID])
	case sBound:
		return collectBranch(s.spo[subID])
	case pBound:
		return collectBranch(s.pos[predID])
	case oBound:
		return collectBranch(s.osp[objID])
	default:
		out := make([]*rdf.Triple, 0, len(s.triples))
		for _, t := range s.triples {
			out = append(out, t)
		}
		return out
	}
}

// Match implements Source.
func (s *Store) Match(subject, predicate, object rdf.Term) ([]*rdf.Triple, error) {
	return s.Query(subject, predicate, object), nil
}

// PredicateCount implements Source using the predicate-usage counters.
func (s *Store) PredicateCount(predicate rdf.Term) int64 {
	id, ok := s.lookup(predicate)
	if !ok {
		return 0
	}
	return s.predCounts[id]
}

func collectLeaf(leaf map[termID]*rdf.Triple) []*rdf.Triple {
	if len(leaf) == 0 {
		return nil
	}
	out := make([]*rdf.Triple, 0, len(leaf))
	for _, t := range leaf {
		out = append(out, t)
	}
	return out
}

func collectBranch(branch map[termID]map[termID]*rdf.Triple) []*rdf.Triple {
	if len(branch) == 0 {
		return nil
	}
	var out []*rdf.Triple
	for _, leaf := range branch {
		for _, t := range leaf {
			out = append(out, t)
		}
	}
	return out
}
