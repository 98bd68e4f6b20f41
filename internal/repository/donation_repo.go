// internal/repository/donation_repo.go
package repository

import (
	"context"
	"fmt"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

type DonationRepository interface {
	Insert(ctx context.Context, d *domain.Donation) (int64, error)
	ListByProject(ctx context.Context, projectID string, limit int) ([]domain.Donation, error)
}

type donationRepo struct {
	db DBTX
}

func NewDonationRepository(db DBTX) DonationRepository {
	return &donationRepo{db: db}
}

// Insert writes the ledger row and fills in ID and CreatedAt.
func (r *donationRepo) Insert(ctx context.Context, d *domain.Donation) (int64, error) {
	query := `
		INSERT INTO donations (
			amount, project_id, mpesa_code, phone_number,
			transaction_ref, transaction_date
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		d.Amount,
		d.ProjectID,
		d.MpesaReceiptNumber,
		d.PhoneNumber,
		d.TransactionRef,
		d.TransactionDate,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert donation %s: %w", d.TransactionRef, err)
	}

	return d.ID, nil
}

func (r *donationRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]domain.Donation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, amount, project_id, mpesa_code, phone_number,
		       transaction_ref, transaction_date, created_at
		FROM donations
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := make([]domain.Donation, 0)
	for rows.Next() {
		var d domain.Donation
		if err := rows.Scan(
			&d.ID,
			&d.Amount,
			&d.ProjectID,
			&d.MpesaReceiptNumber,
			&d.PhoneNumber,
			&d.TransactionRef,
			&d.TransactionDate,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate donations: %w", err)
	}

	return donations, nil
}
