// internal/domain/donation.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation is a completed ledger entry. Rows are never updated.
type Donation struct {
	ID                 int64           `json:"id" db:"id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	ProjectID          string          `json:"project_id" db:"project_id"`
	MpesaReceiptNumber string          `json:"mpesa_receipt_number" db:"mpesa_code"`
	PhoneNumber        string          `json:"phone_number" db:"phone_number"`
	TransactionRef     string          `json:"transaction_ref" db:"transaction_ref"`
	TransactionDate    *time.Time      `json:"transaction_date,omitempty" db:"transaction_date"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}
