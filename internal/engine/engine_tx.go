package engine

import "fmt"

// Begin opens a session transaction. Until Commit or Rollback, every
// engine call runs inside it.
func (e *DBEngine) Begin() error {
	if !e.started {
		return errNotStarted
	}
	if e.inTx {
		return fmt.Errorf("transaction already in progress")
	}

	tx, err := e.store.Begin(false) // writeable transaction
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	e.currTx = tx
	e.inTx = true
	return nil
}

// Commit commits the session transaction.
func (e *DBEngine) Commit() error {
	if !e.inTx {
		return fmt.Errorf("no active transaction to commit")
	}

	// The session ends even if the commit fails; the storage tx is closed.
	tx := e.currTx
	e.currTx = nil
	e.inTx = false

	if err := e.store.Commit(tx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback discards the session transaction.
func (e *DBEngine) Rollback() error {
	if !e.inTx {
		return fmt.Errorf("no active transaction to rollback")
	}

	tx := e.currTx
	e.currTx = nil
	e.inTx = false

	if err := e.store.Rollback(tx); err != nil {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// InTx reports whether a session transaction is open.
func (e *DBEngine) InTx() bool { return e.inTx }
