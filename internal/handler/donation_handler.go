// internal/handler/donation_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

const maxDonationBody = 16 << 10

type Donator interface {
	Donate(ctx context.Context, in usecase.DonateInput) (*usecase.DonateResult, error)
}

type StatusChecker interface {
	CheckStatus(ctx context.Context, checkoutRequestID string) (*usecase.StatusResult, error)
}

type DonationHandler struct {
	donations Donator
	status    StatusChecker
	logger    *zap.Logger
}

func NewDonationHandler(donations Donator, status StatusChecker, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{
		donations: donations,
		status:    status,
		logger:    logger.With(zap.String("component", "donation_handler")),
	}
}

type donateRequest struct {
	ProjectID   string           `json:"project_id"`
	PhoneNumber string           `json:"phone_number"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description,omitempty"`
}

type donateResponse struct {
	TransactionRef    string                    `json:"transaction_ref"`
	CheckoutRequestID string                    `json:"checkout_request_id"`
	MerchantRequestID string                    `json:"merchant_request_id"`
	CustomerMessage   string                    `json:"customer_message"`
	Amount            decimal.Decimal           `json:"amount"`
	Status            domain.TransactionStatus  `json:"status"`
	Simulated         bool                      `json:"simulated,omitempty"`
	Settlement        *usecase.ReconcileOutcome `json:"settlement,omitempty"`
}

// HandleDonate starts an STK push donation.
func (h *DonationHandler) HandleDonate(w http.ResponseWriter, r *http.Request) {
	var req donateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDonationBody)).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid request body", err,
			map[string]interface{}{"reason": domain.ReasonMissingFields})
		return
	}

	if req.Amount == nil {
		sendError(w, h.logger, http.StatusBadRequest, domain.ErrMissingFields.Error(), nil,
			map[string]interface{}{"reason": domain.ReasonMissingFields})
		return
	}

	res, err := h.donations.Donate(r.Context(), usecase.DonateInput{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		PhoneNumber: req.PhoneNumber,
		Amount:      *req.Amount,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			sendError(w, h.logger, http.StatusNotFound, "project not found or not accepting donations", nil, nil)
			return
		}
		h.logger.Error("donation failed", zap.String("project_id", req.ProjectID), zap.Error(err))
		sendError(w, h.logger, http.StatusInternalServerError, "failed to record donation", nil, nil)
		return
	}

	if f := res.Push.Failure; f != nil {
		sendError(w, h.logger, failureStatus(f.Reason), f.Message, nil, map[string]interface{}{
			"reason":          f.Reason,
			"transaction_ref": res.TransactionRef,
		})
		return
	}

	resp := donateResponse{
		TransactionRef:    res.TransactionRef,
		CheckoutRequestID: res.Push.CheckoutRequestID,
		MerchantRequestID: res.Push.MerchantRequestID,
		CustomerMessage:   res.Push.CustomerMessage,
		Amount:            res.Push.Amount,
		Status:            domain.TxStatusPending,
		Simulated:         res.Push.Simulated,
	}
	if res.Pending != nil {
		resp.Status = res.Pending.Status
	}
	if res.Settlement != nil {
		outcome := res.Settlement.Outcome
		resp.Settlement = &outcome
	}

	sendSuccess(w, h.logger, http.StatusAccepted, "payment prompt sent", resp)
}

// HandleStatus reports the provider view and the local record of a push.
func (h *DonationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	checkoutID := strings.TrimSpace(r.URL.Query().Get("checkout_request_id"))
	if checkoutID == "" {
		sendError(w, h.logger, http.StatusBadRequest, "checkout_request_id is required", nil, nil)
		return
	}

	res, err := h.status.CheckStatus(r.Context(), checkoutID)
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		sendError(w, h.logger, http.StatusNotFound, "transaction not found", nil, nil)
		return
	case err != nil:
		h.logger.Error("status check failed", zap.String("checkout_request_id", checkoutID), zap.Error(err))
		sendError(w, h.logger, http.StatusInternalServerError, "failed to check status", nil, nil)
		return
	}

	data := map[string]interface{}{
		"transaction": res.Transaction,
		"applied":     res.Applied,
	}
	if res.Query != nil {
		data["query"] = queryView(res.Query)
	}
	sendSuccess(w, h.logger, http.StatusOK, "status retrieved", data)
}

func queryView(q *mpesa.QueryResult) map[string]interface{} {
	v := map[string]interface{}{
		"outcome":  q.Outcome,
		"attempts": q.Attempts,
	}
	if q.FailureKind != "" {
		v["failure_kind"] = q.FailureKind
	}
	if q.ErrorKind != "" {
		v["error_kind"] = q.ErrorKind
	}
	if q.Exhaustion != "" {
		v["exhaustion"] = q.Exhaustion
	}
	if q.ResultCode != "" {
		v["result_code"] = q.ResultCode
	}
	if q.ResultDesc != "" {
		v["result_desc"] = q.ResultDesc
	}
	if q.Simulated {
		v["simulated"] = true
	}
	v["definitive"] = q.Definitive
	return v
}

func failureStatus(reason domain.FailureReason) int {
	switch {
	case reason.IsValidation():
		return http.StatusBadRequest
	case reason.IsConfiguration():
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
