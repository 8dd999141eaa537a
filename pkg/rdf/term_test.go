package rdf

import (
	"testing"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
)

func TestNewIRI(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"http", "http://example.org/s", true},
		{"urn", "urn:uuid:1234", true},
		{"scheme with digits", "x9+.-:rest", true},
		{"empty", "", false},
		{"no scheme", "example.org/s", false},
		{"scheme starts with digit", "9http://example.org", false},
		{"leading colon", ":nothing", false},
		{"whitespace", "http://example.org/a b", false},
		{"angle bracket", "http://example.org/<s>", false},
		{"backslash", "http://example.org/a\\b", false},
		{"control character", "http://example.org/a\x01b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iri, err := NewIRI(tt.value)
			if tt.ok {
				if err != nil {
					t.Fatalf("NewIRI(%q): %v", tt.value, err)
				}
				if iri.Value != tt.value {
					t.Errorf("Value = %q, want %q", iri.Value, tt.value)
				}
				return
			}
			if err == nil {
				t.Fatalf("NewIRI(%q) succeeded, want error", tt.value)
			}
			if !graperr.IsCode(err, graperr.CodeTermInvalidIRI) {
				t.Errorf("code = %q, want %q", graperr.GetCode(err), graperr.CodeTermInvalidIRI)
			}
		})
	}
}

func TestTermString(t *testing.T) {
	tests := []struct {
		name string
		term Term
		want string
	}{
		{"iri", MustIRI("http://example.org/s"), "<http://example.org/s>"},
		{"blank node", &BlankNode{ID: "b1"}, "_:b1"},
		{"plain literal", NewLiteral("hello"), `"hello"`},
		{"escaped literal", NewLiteral("line1\nline2 \"quoted\""), `"line1\nline2 \"quoted\""`},
		{"lang literal", NewLangLiteral("chat", "fr"), `"chat"@fr`},
		{"typed literal", NewTypedLiteral("42", XSDInteger), `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"integer helper", NewIntegerLiteral(-7), `"-7"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"double helper", NewDoubleLiteral(2.5), `"2.5"^^<http://www.w3.org/2001/XMLSchema#double>`},
		{"boolean helper", NewBooleanLiteral(true), `"true"^^<http://www.w3.org/2001/XMLSchema#boolean>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.term.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLiteralEquals(t *testing.T) {
	a := NewTypedLiteral("1", XSDInteger)
	b := NewTypedLiteral("1", XSDInteger)
	if !a.Equals(b) {
		t.Error("equal typed literals not Equals")
	}
	if a.Equals(NewLiteral("1")) {
		t.Error("typed literal Equals plain literal")
	}
	if NewLangLiteral("a", "en").Equals(NewLangLiteral("a", "de")) {
		t.Error("different language tags Equals")
	}
	if a.Equals(MustIRI("http://example.org/1")) {
		t.Error("literal Equals IRI")
	}
}

func TestNewLiteralFull(t *testing.T) {
	if _, err := NewLiteralFull("x", "en", XSDString); !graperr.IsCode(err, graperr.CodeTermDatatypeLanguage) {
		t.Errorf("language+datatype: code = %q, want %q", graperr.GetCode(err), graperr.CodeTermDatatypeLanguage)
	}
	lit, err := NewLiteralFull("x", "", XSDString)
	if err != nil {
		t.Fatalf("NewLiteralFull: %v", err)
	}
	if !lit.Datatype.Equals(XSDString) {
		t.Errorf("Datatype = %v, want xsd:string", lit.Datatype)
	}
}

func TestNewTriple(t *testing.T) {
	s := MustIRI("http://example.org/s")
	p := MustIRI("http://example.org/p")
	o := NewLiteral("o")

	if _, err := NewTriple(s, p, o); err != nil {
		t.Fatalf("valid triple rejected: %v", err)
	}
	if _, err := NewTriple(&BlankNode{ID: "b1"}, p, s); err != nil {
		t.Fatalf("blank node subject rejected: %v", err)
	}

	if _, err := NewTriple(o, p, s); !graperr.IsCode(err, graperr.CodeTermInvalidPosition) {
		t.Errorf("literal subject: code = %q, want %q", graperr.GetCode(err), graperr.CodeTermInvalidPosition)
	}
	if _, err := NewTriple(s, &BlankNode{ID: "b1"}, o); !graperr.IsCode(err, graperr.CodeTermInvalidPosition) {
		t.Errorf("blank node predicate: code = %q, want %q", graperr.GetCode(err), graperr.CodeTermInvalidPosition)
	}
	if _, err := NewTriple(s, p, nil); !graperr.IsCode(err, graperr.CodeTermInvalidPosition) {
		t.Errorf("nil object: code = %q, want %q", graperr.GetCode(err), graperr.CodeTermInvalidPosition)
	}
}

func TestTripleKey(t *testing.T) {
	s := MustIRI("http://example.org/s")
	p := MustIRI("http://example.org/p")

	t1, _ := NewTriple(s, p, NewLiteral("v"))
	t2, _ := NewTriple(MustIRI("http://example.org/s"), MustIRI("http://example.org/p"), NewLiteral("v"))
	if t1.Key() != t2.Key() {
		t.Error("equal triples have different keys")
	}

	t3, _ := NewTriple(s, p, NewLiteral("w"))
	if t1.Key() == t3.Key() {
		t.Error("distinct triples share a key")
	}

	// The key must see component boundaries, not just concatenated text.
	t4, _ := NewTriple(s, MustIRI("http://example.org/pv"), NewLiteral(""))
	if t3.Key() == t4.Key() {
		t.Error("boundary-shifted triples share a key")
	}
}

func TestNewAnonBlankNode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		b := NewAnonBlankNode()
		if b.ID == "" {
			t.Fatal("empty anon blank node id")
		}
		if _, dup := seen[b.ID]; dup {
			t.Fatalf("duplicate anon blank node id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
}
