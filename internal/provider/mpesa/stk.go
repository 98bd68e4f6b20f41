// internal/provider/mpesa/stk.go
package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

const defaultTransactionType = "CustomerPayBillOnline"

var minAmount = decimal.NewFromInt(1)

// ============================================
// STK PUSH (Lipa Na M-Pesa Online)
// ============================================

// STKPushRequest is the processrequest body.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the processrequest answer.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// apiError is the error envelope Daraja uses on non-2xx responses.
type apiError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKPushInput is what a caller supplies for one payment prompt.
type STKPushInput struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

// Failure explains why a push request was not accepted.
type Failure struct {
	Reason  domain.FailureReason `json:"reason"`
	Message string               `json:"message"`
	Err     error                `json:"-"`
}

// STKPushResult is either an accepted request or a tagged Failure.
type STKPushResult struct {
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	CustomerMessage   string `json:"customer_message,omitempty"`
	PhoneNumber       string `json:"phone_number,omitempty"`
	// Amount is the whole-unit amount actually requested from the payer.
	Amount    decimal.Decimal `json:"amount"`
	Simulated bool            `json:"simulated,omitempty"`
	Failure   *Failure        `json:"failure,omitempty"`
}

func (r STKPushResult) OK() bool {
	return r.Failure == nil
}

func failed(reason domain.FailureReason, err error) STKPushResult {
	return STKPushResult{Failure: &Failure{Reason: reason, Message: err.Error(), Err: err}}
}

// InitiateSTKPush submits one payment prompt. It never returns an error and
// never retries: a second submission could charge the payer twice.
func (c *Client) InitiateSTKPush(ctx context.Context, in STKPushInput) STKPushResult {
	if strings.TrimSpace(in.PhoneNumber) == "" || strings.TrimSpace(in.AccountReference) == "" {
		return failed(domain.ReasonMissingFields, domain.ErrMissingFields)
	}
	if in.Amount.LessThan(minAmount) {
		return failed(domain.ReasonAmountTooLow,
			fmt.Errorf("%w: got %s, minimum is %s", domain.ErrAmountTooLow, in.Amount, minAmount))
	}
	if c.config.CallbackURL == "" || c.config.TimeoutURL == "" {
		return failed(domain.ReasonMisconfiguredEndpoints, domain.ErrMisconfiguredEndpoints)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Error("failed to get access token", zap.Error(err))
		if errors.Is(err, domain.ErrMissingCredentials) {
			return failed(domain.ReasonMissingCredentials, err)
		}
		return failed(domain.ReasonTokenRequestFailed, err)
	}

	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return failed(domain.ReasonInvalidPhoneNumber, err)
	}

	transactionType := c.config.TransactionType
	if transactionType == "" {
		transactionType = defaultTransactionType
	}
	desc := in.Description
	if desc == "" {
		desc = fmt.Sprintf("Donation %s", in.AccountReference)
	}

	amount := in.Amount.Round(0)
	timestamp := c.timestamp()
	request := STKPushRequest{
		BusinessShortCode: c.config.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.config.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.config.CallbackURL,
		AccountReference:  in.AccountReference,
		TransactionDesc:   desc,
	}

	resp, err := c.makeRequest(ctx, stkPushPath, token, request)
	if err != nil {
		c.logger.Error("stk push request failed",
			zap.String("account_reference", in.AccountReference),
			zap.Error(err))
		return failed(domain.ReasonRequestRejected, fmt.Errorf("%w: %w", domain.ErrRequestRejected, err))
	}

	if !resp.OK() {
		msg := describeErrorBody(resp.Body)
		c.logger.Warn("stk push rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("account_reference", in.AccountReference),
			zap.String("description", msg))
		return failed(domain.ReasonRequestRejected,
			fmt.Errorf("%w: status %d: %s", domain.ErrRequestRejected, resp.StatusCode, msg))
	}

	var response STKPushResponse
	if err := json.Unmarshal(resp.Body, &response); err != nil {
		return failed(domain.ReasonRequestRejected,
			fmt.Errorf("%w: failed to parse response: %w", domain.ErrRequestRejected, err))
	}

	if response.ResponseCode != "0" {
		c.logger.Warn("stk push not accepted",
			zap.String("response_code", response.ResponseCode),
			zap.String("description", response.ResponseDescription))
		return failed(domain.ReasonRequestRejected,
			fmt.Errorf("%w: %s", domain.ErrRequestRejected, response.ResponseDescription))
	}

	c.logger.Info("stk push accepted",
		zap.String("checkout_request_id", response.CheckoutRequestID),
		zap.String("merchant_request_id", response.MerchantRequestID),
		zap.String("account_reference", in.AccountReference))

	return STKPushResult{
		CheckoutRequestID: response.CheckoutRequestID,
		MerchantRequestID: response.MerchantRequestID,
		CustomerMessage:   response.CustomerMessage,
		PhoneNumber:       phone,
		Amount:            amount,
	}
}

// describeErrorBody returns the provider's message from an error body, or
// the raw body when it is not the usual envelope.
func describeErrorBody(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	var r STKPushResponse
	if err := json.Unmarshal(body, &r); err == nil && r.ResponseDescription != "" {
		return r.ResponseDescription
	}
	return strings.TrimSpace(string(body))
}
