package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bolsoapp/bolso/internal/domain"
	"github.com/bolsoapp/bolso/internal/usecase"
)

// TxManager implements usecase.TransactionManager over the ledger file.
// Writes are serialized by a mutex held for the whole transaction, so the
// validate-persist-recompute sequence of one mutation is atomic from every
// caller's point of view. Reads outside a transaction proceed concurrently.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a write transaction, blocking until any in-flight write
// commits or rolls back.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	db, err := m.store.DB()
	if err != nil {
		return nil, err
	}

	m.store.writes.Lock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		m.store.writes.Unlock()
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}

	return &Tx{tx: tx, store: m.store}, nil
}

// Tx wraps a sql transaction and releases the write lock on completion.
type Tx struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Commit commits the transaction and releases the write lock.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.writes.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Rollback rolls the transaction back. After a Commit it is a no-op, which
// lets callers keep the usual deferred-rollback shape.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.writes.Unlock()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("%w: rollback: %v", domain.ErrPersistence, err)
	}
	return nil
}

// exec resolves the executor for a repository call: the transaction when
// one is in flight, the base connection otherwise.
func (s *Store) exec(tx usecase.Transaction) (executor, error) {
	if tx != nil {
		return tx.(*Tx).tx, nil
	}
	return s.DB()
}
