// Package store implements the in-memory indexed triple store: three
// nested-map indexes over interned term ids, auxiliary class and
// property-value indexes, batch transactions and cached statistics.
package store

import (
	"log/slog"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// Config carries the explicit construction-time configuration of a Store.
type Config struct {
	// TypePredicate is the "is-a" predicate feeding the class-membership
	// index. Defaults to rdf:type.
	TypePredicate *rdf.IRI

	// Logger receives structured store events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a mutable collection of triples with SPO, POS and OSP index
// trees plus class-membership and property-value auxiliary indexes.
//
// All index structures agree exactly on membership after every successful
// Add or Remove. Access is single-threaded; batches are the only mutation
// grouping primitive.
type Store struct {
	cfg Config

	// Interning dictionary: canonical term string form -> dense id.
	ids   map[string]termID
	terms []rdf.Term

	// Base triple set, keyed by canonical triple key.
	triples map[rdf.TripleKey]*rdf.Triple

	// Index trees. Leaf values are the shared *rdf.Triple.
	spo map[termID]map[termID]map[termID]*rdf.Triple
	pos map[termID]map[termID]map[termID]*rdf.Triple
	osp map[termID]map[termID]map[termID]*rdf.Triple

	// Auxiliary indexes.
	predCounts map[termID]int64
	classIndex map[termID]map[termID]struct{} // class object -> subjects
	propValue  map[pairKey]map[termID]struct{}

	typePredID termID

	// Batch state: journal of ops applied since BeginBatch.
	inBatch bool
	journal []journalEntry

	statsValid bool
	stats      Statistics
	predStats  map[string]int64
}

type termID uint32

type pairKey struct {
	pred termID
	obj  termID
}

type journalOp byte

const (
	journalAdd journalOp = iota + 1
	journalRemove
)

type journalEntry struct {
	op     journalOp
	triple *rdf.Triple
}

// New creates an empty store with the given configuration.
func New(cfg Config) *Store {
	if cfg.TypePredicate == nil {
		cfg.TypePredicate = rdf.RDFType
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Store{
		cfg:        cfg,
		ids:        make(map[string]termID),
		triples:    make(map[rdf.TripleKey]*rdf.Triple),
		spo:        make(map[termID]map[termID]map[termID]*rdf.Triple),
		pos:        make(map[termID]map[termID]map[termID]*rdf.Triple),
		osp:        make(map[termID]map[termID]map[termID]*rdf.Triple),
		predCounts: make(map[termID]int64),
		classIndex: make(map[termID]map[termID]struct{}),
		propValue:  make(map[pairKey]map[termID]struct{}),
	}
	s.typePredID = s.intern(cfg.TypePredicate)
	return s
}

// intern returns the dense id of a term, assigning one on first sight.
// Interning keys on the canonical string form so equal terms share an id
// and long IRIs are hashed once.
func (s *Store) intern(term rdf.Term) termID {
	key := term.String()
	if id, ok := s.ids[key]; ok {
		return id
	}
	id := termID(len(s.terms))
	s.ids[key] = id
	s.terms = append(s.terms, term)
	return id
}

// lookup returns the id of a term without assigning one.
func (s *Store) lookup(term rdf.Term) (termID, bool) {
	id, ok := s.ids[term.String()]
	return id, ok
}

// Add inserts a triple. Adding a triple that is already present is a
// no-op. Returns whether the store changed.
func (s *Store) Add(triple *rdf.Triple) bool {
	key := triple.Key()
	if _, ok := s.triples[key]; ok {
		return false
	}
	s.triples[key] = triple

	sub := s.intern(triple.Subject)
	pred := s.intern(triple.Predicate)
	obj := s.intern(triple.Object)

	indexInsert(s.spo, sub, pred, obj, triple)
	indexInsert(s.pos, pred, obj, sub, triple)
	indexInsert(s.osp, obj, sub, pred, triple)

	s.predCounts[pred]++
	if pred == s.typePredID {
		members, ok := s.classIndex[obj]
		if !ok {
			members = make(map[termID]struct{})
			s.classIndex[obj] = members
		}
		members[sub] = struct{}{}
	}
	pv := pairKey{pred: pred, obj: obj}
	subjects, ok := s.propValue[pv]
	if !ok {
		subjects = make(map[termID]struct{})
		s.propValue[pv] = subjects
	}
	subjects[sub] = struct{}{}

	s.statsValid = false
	if s.inBatch {
		s.journal = append(s.journal, journalEntry{op: journalAdd, triple: triple})
	}
	return true
}

// Remove deletes a triple. Removing an absent triple is a no-op.
// Returns whether the store changed.
func (s *Store) Remove(triple *rdf.Triple) bool {
	key := triple.Key()
	stored, ok := s.triples[key]
	if !ok {
		return false
	}
	delete(s.triples, key)

	sub, _ := s.lookup(stored.Subject)
	pred, _ := s.lookup(stored.Predicate)
	obj, _ := s.lookup(stored.Object)

	indexDelete(s.spo, sub, pred, obj)
	indexDelete(s.pos, pred, obj, sub)
	indexDelete(s.osp, obj, sub, pred)

	s.predCounts[pred]--
	if s.predCounts[pred] <= 0 {
		delete(s.predCounts, pred)
	}
	if pred == s.typePredID {
		if members, ok := s.classIndex[obj]; ok {
			delete(members, sub)
			if len(members) == 0 {
				delete(s.classIndex, obj)
			}
		}
	}
	pv := pairKey{pred: pred, obj: obj}
	if subjects, ok := s.propValue[pv]; ok {
		delete(subjects, sub)
		if len(subjects) == 0 {
			delete(s.propValue, pv)
		}
	}

	s.statsValid = false
	if s.inBatch {
		s.journal = append(s.journal, journalEntry{op: journalRemove, triple: stored})
	}
	return true
}

// Contains reports whether the triple is present.
func (s *Store) Contains(triple *rdf.Triple) bool {
	_, ok := s.triples[triple.Key()]
	return ok
}

// Len returns the number of triples in the store.
func (s *Store) Len() int {
	return len(s.triples)
}

// SubjectsOfClass returns the subjects asserted to be instances of the
// given class via the configured type predicate.
func (s *Store) SubjectsOfClass(class rdf.Term) []rdf.Term {
	id, ok := s.lookup(class)
	if !ok {
		return nil
	}
	members, ok := s.classIndex[id]
	if !ok {
		return nil
	}
	out := make([]rdf.Term, 0, len(members))
	for sub := range members {
		out = append(out, s.terms[sub])
	}
	return out
}

// SubjectsWithPropertyValue returns the subjects holding the given
// predicate-object pair, served from the property-value index.
func (s *Store) SubjectsWithPropertyValue(pred, obj rdf.Term) []rdf.Term {
	predID, ok := s.lookup(pred)
	if !ok {
		return nil
	}
	objID, ok := s.lookup(obj)
	if !ok {
		return nil
	}
	subjects, ok := s.propValue[pairKey{pred: predID, obj: objID}]
	if !ok {
		return nil
	}
	out := make([]rdf.Term, 0, len(subjects))
	for sub := range subjects {
		out = append(out, s.terms[sub])
	}
	return out
}

// Optimize compacts the index structures after heavy churn. Store
// contents are unchanged; the interning dictionary and all nested maps
// are rebuilt without tombstoned capacity or unused ids.
func (s *Store) Optimize() {
	before := len(s.terms)

	// Rebuilding re-adds every triple; those adds are not batch ops.
	wasBatch := s.inBatch
	s.inBatch = false
	defer func() { s.inBatch = wasBatch }()

	triples := make([]*rdf.Triple, 0, len(s.triples))
	for _, t := range s.triples {
		triples = append(triples, t)
	}

	s.ids = make(map[string]termID, 3*len(triples))
	s.terms = s.terms[:0]
	s.triples = make(map[rdf.TripleKey]*rdf.Triple, len(triples))
	s.spo = make(map[termID]map[termID]map[termID]*rdf.Triple)
	s.pos = make(map[termID]map[termID]map[termID]*rdf.Triple)
	s.osp = make(map[termID]map[termID]map[termID]*rdf.Triple)
	s.predCounts = make(map[termID]int64)
	s.classIndex = make(map[termID]map[termID]struct{})
	s.propValue = make(map[pairKey]map[termID]struct{})
	s.typePredID = s.intern(s.cfg.TypePredicate)

	for _, t := range triples {
		s.Add(t)
	}

	s.cfg.Logger.Debug("store compacted",
		slog.Int("triples", len(triples)),
		slog.Int("terms_before", before),
		slog.Int("terms_after", len(s.terms)))
}

func indexInsert(idx map[termID]map[termID]map[termID]*rdf.Triple, a, b, c termID, t *rdf.Triple) {
	second, ok := idx[a]
	if !ok {
		second = make(map[termID]map[termID]*rdf.Triple)
		idx[a] = second
	}
	third, ok := second[b]
	if !ok {
		third = make(map[termID]*rdf.Triple)
		second[b] = third
	}
	third[c] = t
}

// indexDelete removes an entry and prunes empty intermediate maps so no
// dangling empty node survives a removal.
func indexDelete(idx map[termID]map[termID]map[termID]*rdf.Triple, a, b, c termID) {
	second, ok := idx[a]
	if !ok {
		return
	}
	third, ok := second[b]
	if !ok {
		return
	}
	delete(third, c)
	if len(third) == 0 {
		delete(second, b)
	}
	if len(second) == 0 {
		delete(idx, a)
	}
}
