// Package rdf provides the RDF term and triple model: IRIs, literals,
// blank nodes and triples, with canonical string forms and dedup keys.
package rdf

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
)

// TermType discriminates the kinds of RDF terms.
type TermType byte

const (
	TermTypeIRI TermType = iota + 1
	TermTypeBlankNode
	TermTypeLiteral
)

// Term represents an RDF term (IRI, blank node, or literal).
// String returns the canonical N-Triples-like form; two terms are treated
// as the same binding value exactly when their String forms are equal.
type Term interface {
	Type() TermType
	String() string
	Equals(other Term) bool
}

// IRI names a resource. The value is validated at construction; an IRI
// held by any Triple or Term value is always syntactically well formed.
type IRI struct {
	Value string
}

// NewIRI creates an IRI, rejecting empty or syntactically invalid values.
// Validation follows the RFC 3987 shape: a scheme followed by ':', no
// whitespace, control characters or characters excluded from IRIs.
func NewIRI(value string) (*IRI, error) {
	if value == "" {
		return nil, graperr.E(graperr.CodeTermInvalidIRI, "empty IRI")
	}
	colon := strings.IndexByte(value, ':')
	if colon <= 0 {
		return nil, graperr.Errorf(graperr.CodeTermInvalidIRI, "IRI %q has no scheme", value)
	}
	if ch := value[0]; !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
		return nil, graperr.Errorf(graperr.CodeTermInvalidIRI, "IRI %q has invalid scheme", value)
	}
	for i := 1; i < colon; i++ {
		ch := value[i]
		if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' ||
			ch >= '0' && ch <= '9' || ch == '+' || ch == '-' || ch == '.') {
			return nil, graperr.Errorf(graperr.CodeTermInvalidIRI, "IRI %q has invalid scheme", value)
		}
	}
	for _, r := range value {
		if r == '<' || r == '>' || r == '"' || r == '{' || r == '}' || r == '|' ||
			r == '^' || r == '`' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return nil, graperr.Errorf(graperr.CodeTermInvalidIRI, "IRI %q contains forbidden character %q", value, r)
		}
	}
	return &IRI{Value: value}, nil
}

// MustIRI is NewIRI for compile-time constants; it panics on invalid input.
func MustIRI(value string) *IRI {
	iri, err := NewIRI(value)
	if err != nil {
		panic(err)
	}
	return iri
}

func (n *IRI) Type() TermType { return TermTypeIRI }

func (n *IRI) String() string { return "<" + n.Value + ">" }

func (n *IRI) Equals(other Term) bool {
	if o, ok := other.(*IRI); ok {
		return n.Value == o.Value
	}
	return false
}

// BlankNode is a node with store-scoped identity. Two blank nodes are
// equal iff their ids match; ids are not portable across stores.
type BlankNode struct {
	ID string
}

// NewBlankNode creates a blank node with the given id.
func NewBlankNode(id string) (*BlankNode, error) {
	if id == "" {
		return nil, graperr.E(graperr.CodeTermInvalidBlankNode, "empty blank node id")
	}
	return &BlankNode{ID: id}, nil
}

// NewAnonBlankNode creates a blank node with a fresh unique id.
func NewAnonBlankNode() *BlankNode {
	return &BlankNode{ID: "b" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

func (b *BlankNode) Type() TermType { return TermTypeBlankNode }

func (b *BlankNode) String() string { return "_:" + b.ID }

func (b *BlankNode) Equals(other Term) bool {
	if o, ok := other.(*BlankNode); ok {
		return b.ID == o.ID
	}
	return false
}

// Literal is a string value with an optional datatype or language tag.
// Datatype and language are mutually exclusive; a literal with neither is
// a plain string.
type Literal struct {
	Value    string
	Language string
	Datatype *IRI
}

// NewLiteral creates a plain string literal.
func NewLiteral(value string) *Literal {
	return &Literal{Value: value}
}

// NewLangLiteral creates a language-tagged string literal.
func NewLangLiteral(value, language string) *Literal {
	return &Literal{Value: value, Language: language}
}

// NewTypedLiteral creates a datatyped literal.
func NewTypedLiteral(value string, datatype *IRI) *Literal {
	return &Literal{Value: value, Datatype: datatype}
}

// NewLiteralFull creates a literal from all three components, failing when
// both a datatype and a language tag are supplied.
func NewLiteralFull(value, language string, datatype *IRI) (*Literal, error) {
	if language != "" && datatype != nil {
		return nil, graperr.Errorf(graperr.CodeTermDatatypeLanguage,
			"literal %q cannot carry both language %q and datatype %s", value, language, datatype.Value)
	}
	return &Literal{Value: value, Language: language, Datatype: datatype}, nil
}

func (l *Literal) Type() TermType { return TermTypeLiteral }

func (l *Literal) String() string {
	out := fmt.Sprintf("%q", l.Value)
	if l.Language != "" {
		return out + "@" + l.Language
	}
	if l.Datatype != nil {
		return out + "^^" + l.Datatype.String()
	}
	return out
}

func (l *Literal) Equals(other Term) bool {
	o, ok := other.(*Literal)
	if !ok {
		return false
	}
	if l.Value != o.Value || l.Language != o.Language {
		return false
	}
	if l.Datatype == nil || o.Datatype == nil {
		return l.Datatype == nil && o.Datatype == nil
	}
	return l.Datatype.Equals(o.Datatype)
}

// Triple is a (subject, predicate, object) fact.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriple creates a triple, validating term positions: the subject must
// be an IRI or blank node and the predicate an IRI.
func NewTriple(subject, predicate, object Term) (*Triple, error) {
	switch subject.(type) {
	case *IRI, *BlankNode:
	default:
		return nil, graperr.Errorf(graperr.CodeTermInvalidPosition,
			"subject must be an IRI or blank node, got %T", subject)
	}
	if _, ok := predicate.(*IRI); !ok {
		return nil, graperr.Errorf(graperr.CodeTermInvalidPosition,
			"predicate must be an IRI, got %T", predicate)
	}
	if object == nil {
		return nil, graperr.E(graperr.CodeTermInvalidPosition, "object must not be nil")
	}
	return &Triple{Subject: subject, Predicate: predicate, Object: object}, nil
}

func (t *Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Key returns the canonical dedup key of the triple, a 128-bit hash over
// the three components' string forms.
func (t *Triple) Key() TripleKey {
	h := xxh3.HashString128(t.Subject.String() + "\x00" + t.Predicate.String() + "\x00" + t.Object.String())
	return TripleKey{Hi: h.Hi, Lo: h.Lo}
}

// TripleKey identifies a triple by the hash of its canonical form.
type TripleKey struct {
	Hi, Lo uint64
}

// Well-known vocabulary IRIs.
var (
	RDFType       = MustIRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	RDFLangString = MustIRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#langString")

	XSDString  = MustIRI("http://www.w3.org/2001/XMLSchema#string")
	XSDInteger = MustIRI("http://www.w3.org/2001/XMLSchema#integer")
	XSDDecimal = MustIRI("http://www.w3.org/2001/XMLSchema#decimal")
	XSDDouble  = MustIRI("http://www.w3.org/2001/XMLSchema#double")
	XSDBoolean = MustIRI("http://www.w3.org/2001/XMLSchema#boolean")
)

// NewIntegerLiteral creates an xsd:integer literal.
func NewIntegerLiteral(value int64) *Literal {
	return NewTypedLiteral(fmt.Sprintf("%d", value), XSDInteger)
}

// NewDoubleLiteral creates an xsd:double literal.
func NewDoubleLiteral(value float64) *Literal {
	return NewTypedLiteral(fmt.Sprintf("%g", value), XSDDouble)
}

// NewBooleanLiteral creates an xsd:boolean literal.
func NewBooleanLiteral(value bool) *Literal {
	return NewTypedLiteral(fmt.Sprintf("%t", value), XSDBoolean)
}
