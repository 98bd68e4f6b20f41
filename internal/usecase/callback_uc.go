// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/events"
	"github.com/Doc-Scripter/HelpingHand/internal/metrics"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
)

// UnitOfWork runs fn inside one database transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(repository.Repositories) error) error
}

type ReconcileOutcome string

const (
	ReconcileCompleted ReconcileOutcome = "completed"
	ReconcileFailed    ReconcileOutcome = "failed"
	ReconcileTimeout   ReconcileOutcome = "timeout"
	ReconcileDuplicate ReconcileOutcome = "duplicate"
	ReconcileNotFound  ReconcileOutcome = "not_found"
	ReconcileInvalid   ReconcileOutcome = "invalid"
	ReconcileError     ReconcileOutcome = "error"
)

// ReconcileResult is what happened to a notification plus the ack owed to
// the provider.
type ReconcileResult struct {
	Outcome           ReconcileOutcome `json:"outcome"`
	CheckoutRequestID string           `json:"checkout_request_id,omitempty"`
	DonationID        int64            `json:"donation_id,omitempty"`
	Ack               mpesa.Ack        `json:"ack"`
	Err               error            `json:"-"`
}

// errAlreadyResolved aborts a unit of work whose conditional transition
// matched no row.
var errAlreadyResolved = errors.New("transaction already resolved")

type CallbackUsecase struct {
	pending repository.PendingTransactionRepository
	uow     UnitOfWork
	notify  notifier
	logger  *zap.Logger
	now     func() time.Time
}

func NewCallbackUsecase(
	pending repository.PendingTransactionRepository,
	uow UnitOfWork,
	publisher events.Publisher,
	logger *zap.Logger,
) *CallbackUsecase {
	if pending == nil || uow == nil || logger == nil {
		panic("usecase: NewCallbackUsecase requires repositories and logger")
	}
	l := logger.With(zap.String("component", "callback_usecase"))
	return &CallbackUsecase{
		pending: pending,
		uow:     uow,
		notify:  notifier{publisher: publisher, logger: l},
		logger:  l,
		now:     time.Now,
	}
}

// ProcessSTKCallback reconciles one STK callback. A successful payment
// completes the pending row, inserts the donation and credits the project
// in a single transaction.
func (uc *CallbackUsecase) ProcessSTKCallback(ctx context.Context, payload []byte) (res ReconcileResult) {
	started := time.Now()
	defer func() { metrics.ObserveReconcile("callback", string(res.Outcome), started) }()

	cb, err := mpesa.ParseSTKCallback(payload)
	if err != nil {
		uc.logger.Error("failed to parse STK callback", zap.Int("payload_size", len(payload)), zap.Error(err))
		return ReconcileResult{Outcome: ReconcileInvalid, Ack: mpesa.Rejected("Invalid callback payload"), Err: err}
	}

	log := uc.logger.With(
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.Int("result_code", cb.ResultCode))
	log.Info("STK callback received", zap.String("result_desc", cb.ResultDesc))

	res = ReconcileResult{CheckoutRequestID: cb.CheckoutRequestID}

	pt, err := uc.pending.FindByCheckoutAndMerchantID(ctx, cb.CheckoutRequestID, cb.MerchantRequestID)
	if err != nil {
		log.Error("failed to load pending transaction", zap.Error(err))
		return res.with(ReconcileError, mpesa.Rejected("Temporary failure, retry"), err)
	}
	if pt == nil {
		log.Warn("callback for unknown transaction")
		return res.with(ReconcileNotFound, mpesa.Accepted("Accepted"), domain.ErrTransactionNotFound)
	}
	if !pt.IsPending() {
		log.Info("duplicate callback ignored", zap.String("status", string(pt.Status)))
		return res.with(ReconcileDuplicate, mpesa.Accepted("Already processed"), nil)
	}

	if cb.Success {
		return uc.completeDonation(ctx, log, cb, pt, res)
	}
	return uc.failTransaction(ctx, log, cb, pt, res)
}

func (uc *CallbackUsecase) completeDonation(
	ctx context.Context,
	log *zap.Logger,
	cb *mpesa.CallbackResult,
	pt *domain.PendingTransaction,
	res ReconcileResult,
) ReconcileResult {
	amount := pt.Amount
	if cb.Amount != nil && cb.Amount.IsPositive() {
		if !cb.Amount.Equal(pt.Amount) {
			log.Warn("callback amount differs from requested amount",
				zap.String("requested", pt.Amount.String()),
				zap.String("paid", cb.Amount.String()))
		}
		amount = *cb.Amount
	}

	phone := pt.PhoneNumber
	if cb.PhoneNumber != "" {
		phone = cb.PhoneNumber
	}

	receipt := cb.MpesaReceiptNumber
	donation := &domain.Donation{
		Amount:             amount,
		ProjectID:          pt.ProjectID,
		MpesaReceiptNumber: receipt,
		PhoneNumber:        phone,
		TransactionRef:     pt.TransactionRef,
		TransactionDate:    cb.TransactionDate,
	}

	err := uc.uow.RunInTx(ctx, func(r repository.Repositories) error {
		ok, err := r.Pending.TransitionIfPending(ctx, pt.CheckoutRequestID, domain.TxStatusCompleted, domain.TransitionFields{
			MpesaReceiptNumber: &receipt,
			CompletedAt:        uc.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyResolved
		}

		if _, err := r.Donations.Insert(ctx, donation); err != nil {
			return err
		}
		return r.Projects.IncrementRaisedAmount(ctx, pt.ProjectID, amount)
	})

	switch {
	case errors.Is(err, errAlreadyResolved):
		log.Info("transaction resolved concurrently, callback ignored")
		return res.with(ReconcileDuplicate, mpesa.Accepted("Already processed"), nil)
	case err != nil:
		log.Error("donation reconciliation rolled back", zap.Error(err))
		return res.with(ReconcileError, mpesa.Rejected("Temporary failure, retry"), err)
	}

	log.Info("donation recorded",
		zap.Int64("donation_id", donation.ID),
		zap.String("project_id", pt.ProjectID),
		zap.String("amount", amount.String()),
		zap.String("mpesa_receipt", receipt))

	uc.notify.publish(ctx, events.DonationEvent{
		Type:               events.EventDonationCompleted,
		CheckoutRequestID:  pt.CheckoutRequestID,
		ProjectID:          pt.ProjectID,
		TransactionRef:     pt.TransactionRef,
		Amount:             amount,
		MpesaReceiptNumber: receipt,
		DonationID:         donation.ID,
		Source:             "callback",
		OccurredAt:         uc.now(),
	})

	res.DonationID = donation.ID
	return res.with(ReconcileCompleted, mpesa.Accepted("Accepted"), nil)
}

func (uc *CallbackUsecase) failTransaction(
	ctx context.Context,
	log *zap.Logger,
	cb *mpesa.CallbackResult,
	pt *domain.PendingTransaction,
	res ReconcileResult,
) ReconcileResult {
	reason := cb.ResultDesc
	ok, err := uc.pending.TransitionIfPending(ctx, pt.CheckoutRequestID, domain.TxStatusFailed, domain.TransitionFields{
		FailureReason: &reason,
		CompletedAt:   uc.now(),
	})
	if err != nil {
		log.Error("failed to mark transaction failed", zap.Error(err))
		return res.with(ReconcileError, mpesa.Rejected("Temporary failure, retry"), err)
	}
	if !ok {
		return res.with(ReconcileDuplicate, mpesa.Accepted("Already processed"), nil)
	}

	log.Warn("payment failed", zap.String("reason", reason))
	uc.notify.publish(ctx, events.DonationEvent{
		Type:              events.EventPaymentFailed,
		CheckoutRequestID: pt.CheckoutRequestID,
		ProjectID:         pt.ProjectID,
		TransactionRef:    pt.TransactionRef,
		Amount:            pt.Amount,
		Reason:            reason,
		Source:            "callback",
		OccurredAt:        uc.now(),
	})

	return res.with(ReconcileFailed, mpesa.Accepted("Accepted"), nil)
}

// ProcessTimeout resolves a still-pending transaction as timed out. There is
// no ledger effect.
func (uc *CallbackUsecase) ProcessTimeout(ctx context.Context, payload []byte) (res ReconcileResult) {
	started := time.Now()
	defer func() { metrics.ObserveReconcile("timeout", string(res.Outcome), started) }()

	n, err := mpesa.ParseTimeout(payload)
	if err != nil {
		uc.logger.Error("failed to parse timeout notification", zap.Error(err))
		return ReconcileResult{Outcome: ReconcileInvalid, Ack: mpesa.Rejected("Invalid timeout payload"), Err: err}
	}

	log := uc.logger.With(
		zap.String("checkout_request_id", n.CheckoutRequestID),
		zap.String("merchant_request_id", n.MerchantRequestID))
	log.Info("timeout notification received", zap.String("result_desc", n.ResultDesc))

	res = ReconcileResult{CheckoutRequestID: n.CheckoutRequestID}

	pt, err := uc.pending.FindByCheckoutAndMerchantID(ctx, n.CheckoutRequestID, n.MerchantRequestID)
	if err != nil {
		log.Error("failed to load pending transaction", zap.Error(err))
		return res.with(ReconcileError, mpesa.Rejected("Temporary failure, retry"), err)
	}
	if pt == nil {
		log.Warn("timeout for unknown transaction")
		return res.with(ReconcileNotFound, mpesa.Accepted("Accepted"), domain.ErrTransactionNotFound)
	}
	if !pt.IsPending() {
		log.Info("timeout for resolved transaction ignored", zap.String("status", string(pt.Status)))
		return res.with(ReconcileDuplicate, mpesa.Accepted("Already processed"), nil)
	}

	reason := n.ResultDesc
	ok, err := uc.pending.TransitionIfPending(ctx, pt.CheckoutRequestID, domain.TxStatusTimeout, domain.TransitionFields{
		FailureReason: &reason,
		CompletedAt:   uc.now(),
	})
	if err != nil {
		log.Error("failed to mark transaction timed out", zap.Error(err))
		return res.with(ReconcileError, mpesa.Rejected("Temporary failure, retry"), err)
	}
	if !ok {
		return res.with(ReconcileDuplicate, mpesa.Accepted("Already processed"), nil)
	}

	uc.notify.publish(ctx, events.DonationEvent{
		Type:              events.EventPaymentTimedOut,
		CheckoutRequestID: pt.CheckoutRequestID,
		ProjectID:         pt.ProjectID,
		TransactionRef:    pt.TransactionRef,
		Amount:            pt.Amount,
		Reason:            reason,
		Source:            "timeout",
		OccurredAt:        uc.now(),
	})

	return res.with(ReconcileTimeout, mpesa.Accepted("Accepted"), nil)
}

func (r ReconcileResult) with(outcome ReconcileOutcome, ack mpesa.Ack, err error) ReconcileResult {
	r.Outcome = outcome
	r.Ack = ack
	r.Err = err
	return r
}
