// internal/usecase/donation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/metrics"
	"github.com/Doc-Scripter/HelpingHand/internal/provider"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
)

type DonateInput struct {
	ProjectID   string          `json:"project_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type DonateResult struct {
	TransactionRef string                     `json:"transaction_ref,omitempty"`
	Push           mpesa.STKPushResult        `json:"push"`
	Pending        *domain.PendingTransaction `json:"pending,omitempty"`
	// Settlement is set only in simulation mode, where the payment is
	// settled immediately through the regular callback path.
	Settlement *ReconcileResult `json:"settlement,omitempty"`
}

// Reconciler settles a provider callback body.
type Reconciler interface {
	ProcessSTKCallback(ctx context.Context, payload []byte) ReconcileResult
}

type DonationUsecase struct {
	projects  repository.ProjectRepository
	pending   repository.PendingTransactionRepository
	requester provider.PaymentRequester
	refPrefix string
	logger    *zap.Logger
	now       func() time.Time

	synthesizer provider.CallbackSynthesizer
	reconciler  Reconciler
}

func NewDonationUsecase(
	projects repository.ProjectRepository,
	pending repository.PendingTransactionRepository,
	requester provider.PaymentRequester,
	refPrefix string,
	logger *zap.Logger,
) *DonationUsecase {
	if projects == nil || pending == nil || requester == nil || logger == nil {
		panic("usecase: NewDonationUsecase requires repositories, requester and logger")
	}
	if refPrefix == "" {
		refPrefix = "HH"
	}
	return &DonationUsecase{
		projects:  projects,
		pending:   pending,
		requester: requester,
		refPrefix: refPrefix,
		logger:    logger.With(zap.String("component", "donation_usecase")),
		now:       time.Now,
	}
}

// EnableSimulatedSettlement makes Donate settle simulated requests at once
// by feeding a synthesized callback to r.
func (uc *DonationUsecase) EnableSimulatedSettlement(s provider.CallbackSynthesizer, r Reconciler) {
	uc.synthesizer = s
	uc.reconciler = r
}

// Donate checks the project, requests the push payment and records it as
// pending. Tagged provider failures come back in Push.Failure with a nil
// error. Errors are returned for a missing project and for store failures.
func (uc *DonationUsecase) Donate(ctx context.Context, in DonateInput) (*DonateResult, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		metrics.ObserveSTKPush(string(domain.ReasonMissingFields), false)
		return &DonateResult{Push: mpesa.STKPushResult{Failure: &mpesa.Failure{
			Reason:  domain.ReasonMissingFields,
			Message: domain.ErrMissingFields.Error(),
			Err:     domain.ErrMissingFields,
		}}}, nil
	}

	project, err := uc.projects.FindActiveByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, projectID)
	}

	ref := domain.NewTransactionRef(uc.refPrefix, project.ID, uc.now())
	desc := in.Description
	if desc == "" {
		desc = "Donation to " + project.ID
	}

	push := uc.requester.InitiateSTKPush(ctx, mpesa.STKPushInput{
		PhoneNumber:      in.PhoneNumber,
		Amount:           in.Amount,
		AccountReference: ref,
		Description:      desc,
	})
	result := &DonateResult{TransactionRef: ref, Push: push}

	if !push.OK() {
		metrics.ObserveSTKPush(string(push.Failure.Reason), push.Simulated)
		uc.logger.Warn("donation request failed",
			zap.String("project_id", project.ID),
			zap.String("transaction_ref", ref),
			zap.String("reason", string(push.Failure.Reason)),
			zap.String("message", push.Failure.Message))
		return result, nil
	}
	metrics.ObserveSTKPush("accepted", push.Simulated)

	pt := &domain.PendingTransaction{
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		ProjectID:         project.ID,
		Amount:            push.Amount,
		PhoneNumber:       push.PhoneNumber,
		TransactionRef:    ref,
		Status:            domain.TxStatusPending,
	}
	if err := uc.pending.Insert(ctx, pt); err != nil {
		// The prompt is already on the payer's phone. Its callback will be
		// acked as unknown, so log enough to reconcile by hand.
		uc.logger.Error("failed to record pending transaction after accepted push",
			zap.String("checkout_request_id", push.CheckoutRequestID),
			zap.String("merchant_request_id", push.MerchantRequestID),
			zap.String("transaction_ref", ref),
			zap.String("project_id", project.ID),
			zap.String("amount", push.Amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record pending transaction: %w", err)
	}
	result.Pending = pt

	uc.logger.Info("donation pending",
		zap.String("checkout_request_id", pt.CheckoutRequestID),
		zap.String("transaction_ref", ref),
		zap.String("project_id", project.ID),
		zap.String("amount", pt.Amount.String()),
		zap.Bool("simulated", push.Simulated))

	if push.Simulated && uc.synthesizer != nil && uc.reconciler != nil {
		uc.settleSimulated(ctx, result)
	}

	return result, nil
}

func (uc *DonationUsecase) settleSimulated(ctx context.Context, result *DonateResult) {
	payload, err := uc.synthesizer.SuccessCallback(result.Push)
	if err != nil {
		uc.logger.Error("failed to synthesize simulated callback", zap.Bool("simulated", true), zap.Error(err))
		return
	}

	settlement := uc.reconciler.ProcessSTKCallback(ctx, payload)
	result.Settlement = &settlement
	if settlement.Outcome == ReconcileCompleted {
		now := uc.now()
		result.Pending.Status = domain.TxStatusCompleted
		result.Pending.CompletedAt = &now
	}

	uc.logger.Warn("simulated donation settled",
		zap.Bool("simulated", true),
		zap.String("checkout_request_id", result.Push.CheckoutRequestID),
		zap.String("outcome", string(settlement.Outcome)))
}
