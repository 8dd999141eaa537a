package store

import (
	"testing"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

func TestBatchCommit(t *testing.T) {
	s := New(Config{})
	if err := s.BeginBatch(); err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	if !s.InBatch() {
		t.Error("InBatch = false inside batch")
	}
	s.Add(triple(t, "alice", "name", rdf.NewLiteral("Alice")))
	s.Add(triple(t, "bob", "name", rdf.NewLiteral("Bob")))

	if err := s.CommitBatch(); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if s.InBatch() {
		t.Error("InBatch = true after commit")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d after commit, want 2", s.Len())
	}
}

func TestBatchRollback(t *testing.T) {
	s := New(Config{})
	pre := triple(t, "alice", "name", rdf.NewLiteral("Alice"))
	doomed := triple(t, "alice", "age", rdf.NewIntegerLiteral(30))
	s.Add(pre)
	s.Add(doomed)

	if err := s.BeginBatch(); err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	s.Add(triple(t, "bob", "name", rdf.NewLiteral("Bob")))
	s.Remove(doomed)
	s.Add(triple(t, "carol", "name", rdf.NewLiteral("Carol")))

	if err := s.RollbackBatch(); err != nil {
		t.Fatalf("RollbackBatch: %v", err)
	}
	if s.InBatch() {
		t.Error("InBatch = true after rollback")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d after rollback, want 2", s.Len())
	}
	if !s.Contains(pre) || !s.Contains(doomed) {
		t.Error("pre-batch state not restored")
	}
	if len(s.Query(iri("bob"), nil, nil)) != 0 {
		t.Error("batched add survives rollback")
	}
}

func TestBatchRollbackReaddedTriple(t *testing.T) {
	s := New(Config{})
	tr := triple(t, "alice", "name", rdf.NewLiteral("Alice"))
	s.Add(tr)

	// Remove and re-add inside one batch; rollback must replay the journal
	// in reverse, ending where the batch started.
	s.BeginBatch()
	s.Remove(tr)
	s.Add(tr)
	s.RollbackBatch()

	if !s.Contains(tr) || s.Len() != 1 {
		t.Errorf("remove+re-add rollback: Len = %d, Contains = %t", s.Len(), s.Contains(tr))
	}
}

func TestBatchStateErrors(t *testing.T) {
	s := New(Config{})

	if err := s.CommitBatch(); !graperr.IsCode(err, graperr.CodeStoreBatchInactive) {
		t.Errorf("CommitBatch without batch: code = %q, want %q", graperr.GetCode(err), graperr.CodeStoreBatchInactive)
	}
	if err := s.RollbackBatch(); !graperr.IsCode(err, graperr.CodeStoreBatchInactive) {
		t.Errorf("RollbackBatch without batch: code = %q, want %q", graperr.GetCode(err), graperr.CodeStoreBatchInactive)
	}

	s.BeginBatch()
	if err := s.BeginBatch(); !graperr.IsCode(err, graperr.CodeStoreBatchNested) {
		t.Errorf("nested BeginBatch: code = %q, want %q", graperr.GetCode(err), graperr.CodeStoreBatchNested)
	}
	s.CommitBatch()

	// A fresh batch is usable after the previous one finished.
	if err := s.BeginBatch(); err != nil {
		t.Fatalf("BeginBatch after commit: %v", err)
	}
	s.RollbackBatch()
}

func TestBatchNoopOperationsNotJournaled(t *testing.T) {
	s := New(Config{})
	tr := triple(t, "alice", "name", rdf.NewLiteral("Alice"))
	s.Add(tr)

	s.BeginBatch()
	// Re-adding a present triple and removing an absent one change nothing.
	s.Add(tr)
	s.Remove(triple(t, "bob", "name", rdf.NewLiteral("Bob")))
	if len(s.journal) != 0 {
		t.Errorf("journal has %d entries for no-op operations, want 0", len(s.journal))
	}
	s.RollbackBatch()

	if !s.Contains(tr) {
		t.Error("no-op batch disturbed store contents")
	}
}
