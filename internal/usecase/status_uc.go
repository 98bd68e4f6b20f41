// internal/usecase/status_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/events"
	"github.com/Doc-Scripter/HelpingHand/internal/metrics"
	"github.com/Doc-Scripter/HelpingHand/internal/provider"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
)

type StatusResult struct {
	Transaction *domain.PendingTransaction `json:"transaction"`
	// Query is nil when the local record was already terminal.
	Query *mpesa.QueryResult `json:"query,omitempty"`
	// Applied reports that this query moved the record out of pending.
	Applied bool `json:"applied"`
}

type StatusUsecase struct {
	pending repository.PendingTransactionRepository
	poller  provider.StatusPoller
	notify  notifier
	logger  *zap.Logger
	now     func() time.Time
}

func NewStatusUsecase(
	pending repository.PendingTransactionRepository,
	poller provider.StatusPoller,
	publisher events.Publisher,
	logger *zap.Logger,
) *StatusUsecase {
	if pending == nil || poller == nil || logger == nil {
		panic("usecase: NewStatusUsecase requires repository, poller and logger")
	}
	l := logger.With(zap.String("component", "status_usecase"))
	return &StatusUsecase{
		pending: pending,
		poller:  poller,
		notify:  notifier{publisher: publisher, logger: l},
		logger:  l,
		now:     time.Now,
	}
}

// CheckStatus returns the local record and, while it is pending, the
// provider's view. Cancelled, failed and timed out answers are applied to
// the record only when the provider itself gave them (QueryResult.Definitive).
// A confirmed answer is never applied: completion needs the receipt that
// only the callback carries. A failed write is returned as an error.
func (uc *StatusUsecase) CheckStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	if checkoutRequestID == "" {
		return nil, domain.ErrMissingFields
	}

	pt, err := uc.pending.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transaction: %w", err)
	}
	if pt == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, checkoutRequestID)
	}

	result := &StatusResult{Transaction: pt}
	if !pt.IsPending() {
		return result, nil
	}

	q := uc.poller.QuerySTKPush(ctx, checkoutRequestID)
	result.Query = &q
	kind := string(q.ErrorKind)
	if kind == "" {
		kind = string(q.FailureKind)
	}
	metrics.ObserveStatusQuery(string(q.Outcome), kind)

	log := uc.logger.With(
		zap.String("checkout_request_id", checkoutRequestID),
		zap.String("outcome", string(q.Outcome)),
		zap.Int("attempts", q.Attempts))
	if q.Err != nil {
		log.Warn("status query did not resolve", zap.String("error_kind", string(q.ErrorKind)), zap.Error(q.Err))
	} else {
		log.Info("status query classified", zap.String("result_desc", q.ResultDesc))
	}

	target, ok := q.Outcome.TargetStatus()
	if !ok {
		return result, nil
	}
	if !q.Definitive {
		log.Warn("status query outcome not confirmed by the provider, leaving transaction pending")
		return result, nil
	}

	reason := q.ResultDesc
	if reason == "" {
		reason = string(q.Outcome)
	}
	now := uc.now()
	applied, err := uc.pending.TransitionIfPending(ctx, checkoutRequestID, target, domain.TransitionFields{
		FailureReason: &reason,
		CompletedAt:   now,
	})
	if err != nil {
		log.Error("failed to apply status query outcome", zap.Error(err))
		return nil, fmt.Errorf("failed to apply status query outcome: %w", err)
	}
	if !applied {
		// Resolved concurrently; report what the store now says.
		if fresh, err := uc.pending.FindByCheckoutID(ctx, checkoutRequestID); err == nil && fresh != nil {
			result.Transaction = fresh
		}
		return result, nil
	}

	pt.Status = target
	pt.FailureReason = &reason
	pt.CompletedAt = &now
	result.Applied = true

	eventType := events.EventPaymentFailed
	if target == domain.TxStatusTimeout {
		eventType = events.EventPaymentTimedOut
	}
	uc.notify.publish(ctx, events.DonationEvent{
		Type:              eventType,
		CheckoutRequestID: pt.CheckoutRequestID,
		ProjectID:         pt.ProjectID,
		TransactionRef:    pt.TransactionRef,
		Amount:            pt.Amount,
		Reason:            reason,
		Source:            "status_query",
		Simulated:         q.Simulated,
		OccurredAt:        now,
	})

	log.Info("status query resolved transaction", zap.String("status", string(target)))
	return result, nil
}
