// internal/repository/pending_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

type PendingTransactionRepository interface {
	Insert(ctx context.Context, t *domain.PendingTransaction) error
	FindByCheckoutAndMerchantID(ctx context.Context, checkoutID, merchantID string) (*domain.PendingTransaction, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error)
	// TransitionIfPending moves a pending row to a terminal status. It
	// returns false, and changes nothing, when the row is not pending.
	TransitionIfPending(ctx context.Context, checkoutID string, status domain.TransactionStatus, fields domain.TransitionFields) (bool, error)
}

type pendingTransactionRepo struct {
	db DBTX
}

func NewPendingTransactionRepository(db DBTX) PendingTransactionRepository {
	return &pendingTransactionRepo{db: db}
}

const pendingColumns = `
	id, checkout_request_id, merchant_request_id, project_id, amount,
	phone_number, transaction_ref, status, mpesa_receipt_number,
	failure_reason, created_at, completed_at`

func scanPending(row rowScanner) (*domain.PendingTransaction, error) {
	var (
		t      domain.PendingTransaction
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.CheckoutRequestID,
		&t.MerchantRequestID,
		&t.ProjectID,
		&t.Amount,
		&t.PhoneNumber,
		&t.TransactionRef,
		&status,
		&t.MpesaReceiptNumber,
		&t.FailureReason,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}

// Insert always stores the row as pending.
func (r *pendingTransactionRepo) Insert(ctx context.Context, t *domain.PendingTransaction) error {
	query := `
		INSERT INTO pending_transactions (
			checkout_request_id, merchant_request_id, project_id, amount,
			phone_number, transaction_ref, status
		) VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		t.CheckoutRequestID,
		t.MerchantRequestID,
		t.ProjectID,
		t.Amount,
		t.PhoneNumber,
		t.TransactionRef,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending transaction %s: %w", t.CheckoutRequestID, err)
	}

	t.Status = domain.TxStatusPending
	return nil
}

func (r *pendingTransactionRepo) FindByCheckoutAndMerchantID(ctx context.Context, checkoutID, merchantID string) (*domain.PendingTransaction, error) {
	query := `SELECT` + pendingColumns + `
		FROM pending_transactions
		WHERE checkout_request_id = $1 AND merchant_request_id = $2`

	t, err := scanPending(r.db.QueryRow(ctx, query, checkoutID, merchantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending transaction %s: %w", checkoutID, err)
	}
	return t, nil
}

func (r *pendingTransactionRepo) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	query := `SELECT` + pendingColumns + `
		FROM pending_transactions
		WHERE checkout_request_id = $1`

	t, err := scanPending(r.db.QueryRow(ctx, query, checkoutID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending transaction %s: %w", checkoutID, err)
	}
	return t, nil
}

// TransitionIfPending relies on the row lock taken by UPDATE: a concurrent
// resolver blocks, then re-evaluates status and matches zero rows.
func (r *pendingTransactionRepo) TransitionIfPending(ctx context.Context, checkoutID string, status domain.TransactionStatus, fields domain.TransitionFields) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("cannot transition to non-terminal status %q", status)
	}

	query := `
		UPDATE pending_transactions
		SET status = $2,
		    mpesa_receipt_number = $3,
		    failure_reason = $4,
		    completed_at = $5
		WHERE checkout_request_id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query,
		checkoutID,
		string(status),
		fields.MpesaReceiptNumber,
		fields.FailureReason,
		fields.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition %s to %s: %w", checkoutID, status, err)
	}

	return tag.RowsAffected() == 1, nil
}
