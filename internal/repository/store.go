// internal/repository/store.go
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repositories groups the stores bound to one DBTX.
type Repositories struct {
	Projects  ProjectRepository
	Donations DonationRepository
	Pending   PendingTransactionRepository
}

func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Projects:  NewProjectRepository(db),
		Donations: NewDonationRepository(db),
		Pending:   NewPendingTransactionRepository(db),
	}
}

// Store exposes pool-bound repositories and runs units of work.
type Store struct {
	Repositories
	db TxBeginner
}

func NewStore(db TxBeginner) *Store {
	return &Store{
		Repositories: NewRepositories(db),
		db:           db,
	}
}

// RunInTx runs fn against repositories bound to one read-committed
// transaction. fn's error, or a failed commit, rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
