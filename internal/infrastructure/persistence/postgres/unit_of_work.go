// Package postgres implements PostgreSQL persistence layer for Phoenix Recovery Hub.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK IMPLEMENTATION
// Quest completion applies four effects (record, profile, aggregate, events)
// that must commit atomically. The unit of work wraps a single pgx
// transaction and hands out transaction-scoped repositories.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork implements profile.UnitOfWork over a pgx transaction.
type UnitOfWork struct {
	tx       pgx.Tx
	profiles *ProfileRepository
	progress *ProgressRepository
	quests   *QuestRepository

	mu   sync.Mutex
	done bool
}

// Profiles returns the transaction-scoped profile repository.
func (u *UnitOfWork) Profiles() profile.Repository {
	return u.profiles
}

// Progress returns the transaction-scoped progress repository.
func (u *UnitOfWork) Progress() profile.ProgressRepository {
	return u.progress
}

// Quests returns the transaction-scoped quest record repository.
func (u *UnitOfWork) Quests() quest.Repository {
	return u.quests
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return fmt.Errorf("%w: transaction already finished", ErrTransactionFailed)
	}
	u.done = true

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Rollback rolls back the transaction. Safe to call after Commit -
// handlers defer it unconditionally.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true

	if err := u.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w: rollback: %v", ErrTransactionFailed, err)
	}
	return nil
}

// UnitOfWorkFactory implements profile.UnitOfWorkFactory for PostgreSQL.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates a new factory bound to a connection pool.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin starts a new read-write transaction.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (profile.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:       tx,
		profiles: newProfileRepositoryTx(tx),
		progress: newProgressRepositoryTx(tx),
		quests:   newQuestRepositoryTx(tx),
	}, nil
}
