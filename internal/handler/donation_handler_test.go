package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Reason  string                 `json:"reason"`
	Data    map[string]interface{} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func postDonation(h *DonationHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDonate(rec, req)
	return rec
}

func TestDonationHandler_HandleDonate(t *testing.T) {
	const body = `{"project_id":"proj-1","phone_number":"0712345678","amount":1000}`

	t.Run("Accepted", func(t *testing.T) {
		d := &mockDonator{}
		d.On("Donate", mock.Anything, mock.MatchedBy(func(in usecase.DonateInput) bool {
			return in.ProjectID == "proj-1" && in.PhoneNumber == "0712345678" && in.Amount.Equal(decimal.NewFromInt(1000))
		})).Return(&usecase.DonateResult{
			TransactionRef: "HH-proj-1-1704110400000",
			Push: mpesa.STKPushResult{
				CheckoutRequestID: "ws_CO_123",
				MerchantRequestID: "29115-34620561-1",
				CustomerMessage:   "Success. Request accepted for processing",
				PhoneNumber:       "254712345678",
				Amount:            decimal.NewFromInt(1000),
			},
			Pending: &domain.PendingTransaction{CheckoutRequestID: "ws_CO_123", Status: domain.TxStatusPending},
		}, nil).Once()

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()), body)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		env := decode(t, rec)
		assert.True(t, env.Success)
		assert.Equal(t, "ws_CO_123", env.Data["checkout_request_id"])
		assert.Equal(t, "HH-proj-1-1704110400000", env.Data["transaction_ref"])
		assert.Equal(t, "pending", env.Data["status"])
		d.AssertExpectations(t)
	})

	t.Run("Failure Reasons Map To Status", func(t *testing.T) {
		cases := []struct {
			reason domain.FailureReason
			status int
		}{
			{domain.ReasonMissingFields, http.StatusBadRequest},
			{domain.ReasonAmountTooLow, http.StatusBadRequest},
			{domain.ReasonInvalidPhoneNumber, http.StatusBadRequest},
			{domain.ReasonMissingCredentials, http.StatusServiceUnavailable},
			{domain.ReasonMisconfiguredEndpoints, http.StatusServiceUnavailable},
			{domain.ReasonTokenRequestFailed, http.StatusBadGateway},
			{domain.ReasonRequestRejected, http.StatusBadGateway},
		}
		for _, tc := range cases {
			t.Run(string(tc.reason), func(t *testing.T) {
				d := &mockDonator{}
				d.On("Donate", mock.Anything, mock.Anything).Return(&usecase.DonateResult{
					Push: mpesa.STKPushResult{Failure: &mpesa.Failure{Reason: tc.reason, Message: "nope"}},
				}, nil).Once()

				rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()), body)

				assert.Equal(t, tc.status, rec.Code)
				env := decode(t, rec)
				assert.False(t, env.Success)
				assert.Equal(t, string(tc.reason), env.Reason)
			})
		}
	})

	t.Run("Project Not Found", func(t *testing.T) {
		d := &mockDonator{}
		d.On("Donate", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: proj-9", domain.ErrProjectNotFound)).Once()

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()), body)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Store Failure", func(t *testing.T) {
		d := &mockDonator{}
		d.On("Donate", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()), body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})

	t.Run("Missing Amount", func(t *testing.T) {
		d := &mockDonator{}

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()),
			`{"project_id":"proj-1","phone_number":"0712345678"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(domain.ReasonMissingFields), decode(t, rec).Reason)
		d.AssertNotCalled(t, "Donate", mock.Anything, mock.Anything)
	})

	t.Run("Zero Amount Is Too Low", func(t *testing.T) {
		d := &mockDonator{}
		d.On("Donate", mock.Anything, mock.MatchedBy(func(in usecase.DonateInput) bool {
			return in.Amount.IsZero()
		})).Return(&usecase.DonateResult{
			Push: mpesa.STKPushResult{Failure: &mpesa.Failure{Reason: domain.ReasonAmountTooLow, Message: "amount is below the minimum unit"}},
		}, nil).Once()

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()),
			`{"project_id":"proj-1","phone_number":"0712345678","amount":0}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(domain.ReasonAmountTooLow), decode(t, rec).Reason)
		d.AssertExpectations(t)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		d := &mockDonator{}

		rec := postDonation(NewDonationHandler(d, &mockStatusChecker{}, zap.NewNop()), `{"amount":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		d.AssertNotCalled(t, "Donate", mock.Anything, mock.Anything)
	})
}

func TestDonationHandler_HandleStatus(t *testing.T) {
	get := func(h *DonationHandler, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/donations/status"+query, nil)
		rec := httptest.NewRecorder()
		h.HandleStatus(rec, req)
		return rec
	}

	t.Run("Applied Cancellation", func(t *testing.T) {
		s := &mockStatusChecker{}
		s.On("CheckStatus", mock.Anything, "ws_CO_123").Return(&usecase.StatusResult{
			Transaction: &domain.PendingTransaction{CheckoutRequestID: "ws_CO_123", Status: domain.TxStatusFailed},
			Query: &mpesa.QueryResult{
				Outcome:    domain.OutcomeCancelled,
				ResultCode: "1032",
				ResultDesc: "Request cancelled by user",
				Attempts:   1,
			},
			Applied: true,
		}, nil).Once()

		rec := get(NewDonationHandler(&mockDonator{}, s, zap.NewNop()), "?checkout_request_id=ws_CO_123")

		require.Equal(t, http.StatusOK, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, true, env.Data["applied"])
		query := env.Data["query"].(map[string]interface{})
		assert.Equal(t, "CANCELLED", query["outcome"])
		assert.Equal(t, "1032", query["result_code"])
		tx := env.Data["transaction"].(map[string]interface{})
		assert.Equal(t, "failed", tx["status"])
	})

	t.Run("Missing ID", func(t *testing.T) {
		s := &mockStatusChecker{}
		rec := get(NewDonationHandler(&mockDonator{}, s, zap.NewNop()), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
	})

	t.Run("Unknown ID", func(t *testing.T) {
		s := &mockStatusChecker{}
		s.On("CheckStatus", mock.Anything, "ws_CO_404").
			Return(nil, fmt.Errorf("%w: ws_CO_404", domain.ErrTransactionNotFound)).Once()

		rec := get(NewDonationHandler(&mockDonator{}, s, zap.NewNop()), "?checkout_request_id=ws_CO_404")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
