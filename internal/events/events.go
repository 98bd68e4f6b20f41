// internal/events/events.go
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventDonationCompleted EventType = "donation.completed"
	EventPaymentFailed     EventType = "payment.failed"
	EventPaymentTimedOut   EventType = "payment.timed_out"
)

// DonationEvent is published once a pending transaction reaches a terminal
// status and the change is committed.
type DonationEvent struct {
	Type               EventType       `json:"type"`
	CheckoutRequestID  string          `json:"checkout_request_id"`
	ProjectID          string          `json:"project_id"`
	TransactionRef     string          `json:"transaction_ref"`
	Amount             decimal.Decimal `json:"amount"`
	MpesaReceiptNumber string          `json:"mpesa_receipt_number,omitempty"`
	DonationID         int64           `json:"donation_id,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	Source             string          `json:"source"`
	Simulated          bool            `json:"simulated,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event DonationEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DonationEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
