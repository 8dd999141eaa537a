package kv

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// encodedTermSize is one type byte plus the 128-bit hash of the term's
// canonical string form.
const encodedTermSize = 17

type encodedTerm [encodedTermSize]byte

// Table prefixes. Each triple is stored under all three orderings so
// any bound-position combination resolves to a single prefix scan.
const (
	tableSPO byte = 's'
	tablePOS byte = 'p'
	tableOSP byte = 'o'
	// tableTerms maps an encoded term back to its canonical string.
	tableTerms byte = 't'
)

func encodeTerm(term rdf.Term) encodedTerm {
	var out encodedTerm
	out[0] = byte(term.Type())
	h := xxh3.HashString128(term.String())
	binary.BigEndian.PutUint64(out[1:9], h.Hi)
	binary.BigEndian.PutUint64(out[9:17], h.Lo)
	return out
}

// tripleKey builds a table key from up to three encoded terms; a nil
// tail yields a prefix usable for scans.
func tripleKey(table byte, terms ...encodedTerm) []byte {
	key := make([]byte, 0, 1+len(terms)*encodedTermSize)
	key = append(key, table)
	for _, t := range terms {
		key = append(key, t[:]...)
	}
	return key
}

func termKey(id encodedTerm) []byte {
	return append([]byte{tableTerms}, id[:]...)
}

// splitKey recovers the three encoded ids from a full index key.
func splitKey(key []byte) (a, b, c encodedTerm) {
	copy(a[:], key[1:1+encodedTermSize])
	copy(b[:], key[1+encodedTermSize:1+2*encodedTermSize])
	copy(c[:], key[1+2*encodedTermSize:])
	return a, b, c
}
