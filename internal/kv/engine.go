// Package kv is an alternate triple source backed by Badger running in
// its volatile in-memory mode. It keeps the same three index orderings
// as the native store, expressed as key prefixes instead of nested maps.
package kv

import (
	badger "github.com/dgraph-io/badger/v4"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

type Engine struct {
	db *badger.DB
}

// Open creates an in-memory engine. Nothing is persisted: closing the
// engine discards all data.
func Open() (*Engine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, graperr.Wrap(graperr.CodeStoreEngine, err, "opening badger")
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Insert stores a triple under all three index orderings and records
// each term's canonical string for decoding.
func (e *Engine) Insert(t *rdf.Triple) error {
	s, p, o := encodeTerm(t.Subject), encodeTerm(t.Predicate), encodeTerm(t.Object)
	return e.db.Update(func(txn *badger.Txn) error {
		for _, pair := range [...]struct {
			id   encodedTerm
			term rdf.Term
		}{{s, t.Subject}, {p, t.Predicate}, {o, t.Object}} {
			if err := txn.Set(termKey(pair.id), []byte(pair.term.String())); err != nil {
				return err
			}
		}
		for _, key := range [][]byte{
			tripleKey(tableSPO, s, p, o),
			tripleKey(tablePOS, p, o, s),
			tripleKey(tableOSP, o, s, p),
		} {
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a triple from all three orderings. Term strings stay
// behind; they are only reachable through index keys.
func (e *Engine) Delete(t *rdf.Triple) error {
	s, p, o := encodeTerm(t.Subject), encodeTerm(t.Predicate), encodeTerm(t.Object)
	return e.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{
			tripleKey(tableSPO, s, p, o),
			tripleKey(tablePOS, p, o, s),
			tripleKey(tableOSP, o, s, p),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Contains reports whether the triple is stored.
func (e *Engine) Contains(t *rdf.Triple) (bool, error) {
	key := tripleKey(tableSPO, encodeTerm(t.Subject), encodeTerm(t.Predicate), encodeTerm(t.Object))
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Match returns the triples matching the pattern; nil positions are
// wildcards. The bound positions select the index ordering whose key
// prefix covers them.
func (e *Engine) Match(subject, predicate, object rdf.Term) ([]*rdf.Triple, error) {
	var prefix []byte
	var order byte

	switch {
	case subject != nil && predicate != nil && object != nil:
		order = tableSPO
		prefix = tripleKey(tableSPO, encodeTerm(subject), encodeTerm(predicate), encodeTerm(object))
	case subject != nil && predicate != nil:
		order = tableSPO
		prefix = tripleKey(tableSPO, encodeTerm(subject), encodeTerm(predicate))
	case subject != nil && object != nil:
		order = tableOSP
		prefix = tripleKey(tableOSP, encodeTerm(object), encodeTerm(subject))
	case predicate != nil && object != nil:
		order = tablePOS
		prefix = tripleKey(tablePOS, encodeTerm(predicate), encodeTerm(object))
	case subject != nil:
		order = tableSPO
		prefix = tripleKey(tableSPO, encodeTerm(subject))
	case predicate != nil:
		order = tablePOS
		prefix = tripleKey(tablePOS, encodeTerm(predicate))
	case object != nil:
		order = tableOSP
		prefix = tripleKey(tableOSP, encodeTerm(object))
	default:
		order = tableSPO
		prefix = []byte{tableSPO}
	}

	var out []*rdf.Triple
	err := e.db.View(func(txn *badger.Txn) error {
		terms := make(map[encodedTerm]rdf.Term)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			a, b, c := splitKey(key)
			var sID, pID, oID encodedTerm
			switch order {
			case tableSPO:
				sID, pID, oID = a, b, c
			case tablePOS:
				pID, oID, sID = a, b, c
			default:
				oID, sID, pID = a, b, c
			}
			triple, err := e.decodeTriple(txn, terms, sID, pID, oID)
			if err != nil {
				return err
			}
			out = append(out, triple)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) decodeTriple(txn *badger.Txn, cache map[encodedTerm]rdf.Term, sID, pID, oID encodedTerm) (*rdf.Triple, error) {
	s, err := e.decodeTerm(txn, cache, sID)
	if err != nil {
		return nil, err
	}
	p, err := e.decodeTerm(txn, cache, pID)
	if err != nil {
		return nil, err
	}
	o, err := e.decodeTerm(txn, cache, oID)
	if err != nil {
		return nil, err
	}
	return rdf.NewTriple(s, p, o)
}

func (e *Engine) decodeTerm(txn *badger.Txn, cache map[encodedTerm]rdf.Term, id encodedTerm) (rdf.Term, error) {
	if term, ok := cache[id]; ok {
		return term, nil
	}
	item, err := txn.Get(termKey(id))
	if err != nil {
		return nil, graperr.Wrap(graperr.CodeStoreEngine, err, "term id missing from term table")
	}
	var term rdf.Term
	err = item.Value(func(val []byte) error {
		var parseErr error
		term, parseErr = rdf.ParseTerm(string(val))
		return parseErr
	})
	if err != nil {
		return nil, err
	}
	cache[id] = term
	return term, nil
}

// Len counts the stored triples with a scan of the SPO ordering.
func (e *Engine) Len() int {
	return e.countPrefix([]byte{tableSPO})
}

// PredicateCount counts the triples carrying the given predicate.
func (e *Engine) PredicateCount(predicate rdf.Term) int64 {
	id := encodeTerm(predicate)
	return int64(e.countPrefix(tripleKey(tablePOS, id)))
}

func (e *Engine) countPrefix(prefix []byte) int {
	count := 0
	_ = e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count
}
