package sparql

import (
	"context"
	"testing"

	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	s := store.New(store.Config{})
	add := func(subj, pred string, obj rdf.Term) {
		tr, err := rdf.NewTriple(
			rdf.MustIRI("http://example.org/"+subj),
			rdf.MustIRI("http://example.org/"+pred),
			obj,
		)
		if err != nil {
			t.Fatalf("NewTriple() error = %v", err)
		}
		s.Add(tr)
	}
	add("alice", "name", rdf.NewLiteral("Alice"))
	add("alice", "age", rdf.NewIntegerLiteral(30))
	add("bob", "name", rdf.NewLiteral("Bob"))
	add("alice", "knows", rdf.MustIRI("http://example.org/bob"))
	return NewEngine(s, Config{})
}

func TestExecuteSelect(t *testing.T) {
	e := testEngine(t)
	r, err := e.Execute(context.Background(), `
		PREFIX ex: <http://example.org/>
		SELECT ?name WHERE { ?p ex:name ?name } ORDER BY ?name
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.Form != parser.FormSelect {
		t.Errorf("Form = %v, want select", r.Form)
	}
	if len(r.Variables) != 1 || r.Variables[0] != "name" {
		t.Errorf("Variables = %v, want [name]", r.Variables)
	}
	if len(r.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(r.Rows))
	}
	if got, _ := r.Rows[0].Get("name"); got.String() != `"Alice"` {
		t.Errorf("first name = %s, want Alice", got.String())
	}
}

func TestExecuteSelectStarVariables(t *testing.T) {
	e := testEngine(t)
	r, err := e.Execute(context.Background(), `
		PREFIX ex: <http://example.org/>
		SELECT * WHERE { ?p ex:name ?name }
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(r.Variables) != 2 || r.Variables[0] != "name" || r.Variables[1] != "p" {
		t.Errorf("Variables = %v, want [name p] (sorted)", r.Variables)
	}
}

func TestExecuteAsk(t *testing.T) {
	e := testEngine(t)
	r, err := e.Execute(context.Background(),
		`PREFIX ex: <http://example.org/> ASK { ex:alice ex:knows ex:bob }`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.Form != parser.FormAsk || !r.Boolean {
		t.Errorf("result = %+v, want boolean true", r)
	}
}

func TestExecuteConstruct(t *testing.T) {
	e := testEngine(t)
	r, err := e.Execute(context.Background(), `
		PREFIX ex: <http://example.org/>
		CONSTRUCT { ?b ex:knownBy ?a } WHERE { ?a ex:knows ?b }
	`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.Form != parser.FormConstruct || len(r.Triples) != 1 {
		t.Fatalf("result = %+v, want one constructed triple", r)
	}
}

func TestExecuteSyntaxError(t *testing.T) {
	e := testEngine(t)
	_, err := e.Execute(context.Background(), `SELECT WHERE`)
	if err == nil {
		t.Fatal("Execute() succeeded, want syntax error")
	}
	if !graperr.IsCode(err, graperr.CodeParseSyntax) {
		t.Errorf("error = %v, want code %s", err, graperr.CodeParseSyntax)
	}
}

func TestExecuteAll(t *testing.T) {
	e := testEngine(t)
	queries := []string{
		`PREFIX ex: <http://example.org/> SELECT ?n WHERE { ex:alice ex:name ?n }`,
		`PREFIX ex: <http://example.org/> ASK { ex:bob ex:name "Bob" }`,
		`PREFIX ex: <http://example.org/> SELECT (COUNT(*) AS ?c) WHERE { ?s ?p ?o }`,
	}
	results, err := e.ExecuteAll(context.Background(), queries)
	if err != nil {
		t.Fatalf("ExecuteAll() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if len(results[0].Rows) != 1 {
		t.Errorf("first query rows = %d, want 1", len(results[0].Rows))
	}
	if !results[1].Boolean {
		t.Error("second query should be true")
	}
	if got, _ := results[2].Rows[0].Get("c"); got.String() != `"4"^^<http://www.w3.org/2001/XMLSchema#integer>` {
		t.Errorf("count = %s, want 4", got.String())
	}
}

func TestExecuteAllPropagatesFailure(t *testing.T) {
	e := testEngine(t)
	_, err := e.ExecuteAll(context.Background(), []string{
		`PREFIX ex: <http://example.org/> ASK { ex:alice ex:name "Alice" }`,
		`this is not sparql`,
	})
	if err == nil {
		t.Fatal("ExecuteAll() succeeded, want error from bad query")
	}
}
