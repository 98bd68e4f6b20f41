// internal/domain/transaction.go
package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
	TxStatusTimeout   TransactionStatus = "timeout"
)

// IsTerminal reports whether a status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TxStatusCompleted, TxStatusFailed, TxStatusTimeout:
		return true
	}
	return false
}

// PendingTransaction tracks one STK push from acceptance by the provider
// until its callback, timeout or status query resolves it.
type PendingTransaction struct {
	ID                 int64             `json:"id" db:"id"`
	CheckoutRequestID  string            `json:"checkout_request_id" db:"checkout_request_id"`
	MerchantRequestID  string            `json:"merchant_request_id" db:"merchant_request_id"`
	ProjectID          string            `json:"project_id" db:"project_id"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	PhoneNumber        string            `json:"phone_number" db:"phone_number"`
	TransactionRef     string            `json:"transaction_ref" db:"transaction_ref"`
	Status             TransactionStatus `json:"status" db:"status"`
	MpesaReceiptNumber *string           `json:"mpesa_receipt_number,omitempty" db:"mpesa_receipt_number"`
	FailureReason      *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

func (t *PendingTransaction) IsPending() bool {
	return t.Status == TxStatusPending
}

// TransitionFields carries the columns written alongside a terminal status.
type TransitionFields struct {
	MpesaReceiptNumber *string
	FailureReason      *string
	CompletedAt        time.Time
}

// NewTransactionRef builds the caller-side reference passed to the provider
// as AccountReference: <prefix>-<projectId>-<epochMillis>.
func NewTransactionRef(prefix, projectID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, projectID, strconv.FormatInt(now.UnixMilli(), 10))
}
