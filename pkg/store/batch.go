package store

import (
	"log/slog"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
)

// BeginBatch starts a batch of add/remove operations that can be discarded
// atomically with RollbackBatch. Batches are not re-entrant.
func (s *Store) BeginBatch() error {
	if s.inBatch {
		return graperr.E(graperr.CodeStoreBatchNested, "a batch is already active")
	}
	s.inBatch = true
	s.journal = s.journal[:0]
	return nil
}

// CommitBatch makes the batched operations permanent and refreshes the
// statistics caches in one pass.
func (s *Store) CommitBatch() error {
	if !s.inBatch {
		return graperr.E(graperr.CodeStoreBatchInactive, "no active batch")
	}
	applied := len(s.journal)
	s.inBatch = false
	s.journal = s.journal[:0]
	s.refreshStats()
	s.cfg.Logger.Debug("batch committed", slog.Int("operations", applied))
	return nil
}

// RollbackBatch undoes every operation applied since BeginBatch, restoring
// the exact pre-batch state.
func (s *Store) RollbackBatch() error {
	if !s.inBatch {
		return graperr.E(graperr.CodeStoreBatchInactive, "no active batch")
	}
	journal := s.journal
	s.inBatch = false
	s.journal = nil

	for i := len(journal) - 1; i >= 0; i-- {
		entry := journal[i]
		switch entry.op {
		case journalAdd:
			s.Remove(entry.triple)
		case journalRemove:
			s.Add(entry.triple)
		}
	}
	s.cfg.Logger.Debug("batch rolled back", slog.Int("operations", len(journal)))
	return nil
}

// InBatch reports whether a batch is active.
func (s *Store) InBatch() bool {
	return s.inBatch
}
