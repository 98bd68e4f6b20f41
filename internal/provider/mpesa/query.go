// internal/provider/mpesa/query.go
package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/pkg/retry"
)

// ============================================
// STK PUSH QUERY
// ============================================

// STKQueryRequest is the stkpushquery body.
type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the stkpushquery answer.
type STKQueryResponse struct {
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResultCode          *ResultCode `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

// QueryResult is the classified answer to a status query.
type QueryResult struct {
	CheckoutRequestID string             `json:"checkout_request_id"`
	MerchantRequestID string             `json:"merchant_request_id,omitempty"`
	Outcome           domain.Outcome     `json:"outcome"`
	FailureKind       domain.FailureKind `json:"failure_kind,omitempty"`
	ErrorKind         domain.ErrorKind   `json:"error_kind,omitempty"`
	Exhaustion        domain.Exhaustion  `json:"exhaustion,omitempty"`
	ResultCode        string             `json:"result_code,omitempty"`
	ResultDesc        string             `json:"result_desc,omitempty"`
	Attempts          int                `json:"attempts"`
	Simulated         bool               `json:"simulated,omitempty"`
	// Definitive is set only when the outcome came from the provider itself:
	// a 2xx answer carrying a ResultCode, or its own error envelope. Callers
	// must not persist an outcome that is not definitive.
	Definitive bool  `json:"definitive"`
	Err        error `json:"-"`
}

var errStillProcessing = errors.New("transaction is still being processed")

// QuerySTKPush asks the provider for the outcome of a push request. 5xx,
// transport and "still processing" answers are retried under the client's
// query policy. It does not touch any store.
func (c *Client) QuerySTKPush(ctx context.Context, checkoutRequestID string) QueryResult {
	result := QueryResult{CheckoutRequestID: checkoutRequestID}

	if checkoutRequestID == "" {
		return result.withError(domain.ErrorKindClient, domain.ErrMissingFields)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Error("failed to get access token for status query", zap.Error(err))
		return result.withError(domain.ErrorKindCredentials, err)
	}

	lastProcessing := false
	err = c.queryRetry.Do(ctx, func(ctx context.Context, attempt int) error {
		result.Attempts = attempt
		lastProcessing = false

		timestamp := c.timestamp()
		resp, err := c.makeRequest(ctx, stkQueryPath, token, STKQueryRequest{
			BusinessShortCode: c.config.ShortCode,
			Password:          c.password(timestamp),
			Timestamp:         timestamp,
			CheckoutRequestID: checkoutRequestID,
		})
		if err != nil {
			c.logger.Warn("status query attempt failed",
				zap.String("checkout_request_id", checkoutRequestID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.Transient(err)
		}

		if resp.OK() {
			var body STKQueryResponse
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				return retry.Transient(fmt.Errorf("failed to parse query response: %w", err))
			}
			cls := ClassifyDescription(body.ResultDesc)
			result.MerchantRequestID = body.MerchantRequestID
			if body.ResultCode != nil {
				result.ResultCode = body.ResultCode.String()
				result.Definitive = true
			}
			result.ResultDesc = body.ResultDesc
			result.Outcome = cls.Outcome
			result.FailureKind = cls.FailureKind
			return nil
		}

		kind, cls := classifyErrorBody(resp.Body)
		switch {
		case kind == errorBodyProcessing:
			lastProcessing = true
			c.logger.Info("transaction still processing",
				zap.String("checkout_request_id", checkoutRequestID),
				zap.Int("attempt", attempt))
			return retry.Transient(errStillProcessing)
		case kind == errorBodyTerminal:
			result.ResultDesc = describeErrorBody(resp.Body)
			result.Outcome = cls.Outcome
			result.Definitive = true
			return nil
		case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
			return retry.Transient(fmt.Errorf("provider status %d: %s", resp.StatusCode, describeErrorBody(resp.Body)))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("%w: status %d: %s", domain.ErrClientError, resp.StatusCode, describeErrorBody(resp.Body))
		default:
			c.logger.Warn("status query server error",
				zap.String("checkout_request_id", checkoutRequestID),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			return retry.Transient(fmt.Errorf("provider status %d: %s", resp.StatusCode, describeErrorBody(resp.Body)))
		}
	})

	switch {
	case err == nil:
		return result
	case errors.Is(err, retry.ErrExhausted):
		result.Exhaustion = domain.ExhaustionIndeterminate
		if lastProcessing {
			result.Exhaustion = domain.ExhaustionStillPending
		}
		c.logger.Warn("status query exhausted",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Int("attempts", result.Attempts),
			zap.String("exhaustion", string(result.Exhaustion)))
		return result.withError(domain.ErrorKindQueryExhausted, fmt.Errorf("%w: %w", domain.ErrQueryExhausted, err))
	case errors.Is(err, domain.ErrClientError):
		return result.withError(domain.ErrorKindClient, err)
	default:
		return result.withError(domain.ErrorKindCanceled, err)
	}
}

func (r QueryResult) withError(kind domain.ErrorKind, err error) QueryResult {
	r.Outcome = domain.OutcomeError
	r.ErrorKind = kind
	r.Err = err
	return r
}
