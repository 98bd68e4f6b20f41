package mpesa

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/pkg/retry"
)

func queryAnswer(resultCode, desc string) map[string]string {
	return map[string]string{
		"ResponseCode":        "0",
		"ResponseDescription": "The service request has been accepted successsfully",
		"MerchantRequestID":   "29115-34620561-1",
		"CheckoutRequestID":   "ws_CO_123",
		"ResultCode":          resultCode,
		"ResultDesc":          desc,
	}
}

// sequence answers each call with the next responder, repeating the last.
func sequence(responders ...func(http.ResponseWriter)) http.HandlerFunc {
	var n atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(responders) {
			i = len(responders) - 1
		}
		responders[i](w)
	}
}

func status(code int, body interface{}) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { writeJSON(w, code, body) }
}

var stillProcessing = apiError{RequestID: "r-1", ErrorCode: "500.001.1001", ErrorMessage: "The transaction is being processed"}

func TestClient_QuerySTKPush(t *testing.T) {
	t.Run("Processed Successfully Is Confirmed", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, stkQueryPath, r.URL.Path)
			writeJSON(w, http.StatusOK, queryAnswer("0", "The service request is processed successfully."))
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeConfirmed, res.Outcome)
		assert.Equal(t, "0", res.ResultCode)
		assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)
		assert.Equal(t, 1, res.Attempts)
		assert.True(t, res.Definitive)
		assert.NoError(t, res.Err)
	})

	t.Run("Cancelled By User", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, queryAnswer("1032", "Request cancelled by user"))
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeCancelled, res.Outcome)
		assert.Equal(t, "1032", res.ResultCode)
		assert.Equal(t, "Request cancelled by user", res.ResultDesc)
		assert.True(t, res.Definitive)
	})

	t.Run("Answer Without Result Code Is Not Definitive", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"ResultDesc": "Request cancelled by user"})
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeCancelled, res.Outcome)
		assert.False(t, res.Definitive)
	})

	t.Run("Unrecognized Description Is Pending Without Retry", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, queryAnswer("4999", "Awaiting subscriber"))
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomePending, res.Outcome)
		assert.Empty(t, res.ErrorKind)
		assert.Equal(t, int32(1), f.apiCalls.Load())
	})

	t.Run("Numeric Result Code", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"ResponseCode": "0",
				"ResultCode":   1,
				"ResultDesc":   "The balance is insufficient for the transaction",
			})
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeFailed, res.Outcome)
		assert.Equal(t, domain.FailureInsufficientFunds, res.FailureKind)
		assert.Equal(t, "1", res.ResultCode)
	})

	t.Run("Retries Server Errors Then Succeeds", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(
			status(http.StatusInternalServerError, apiError{ErrorMessage: "Internal Server Error"}),
			status(http.StatusInternalServerError, apiError{ErrorMessage: "Internal Server Error"}),
			status(http.StatusOK, queryAnswer("0", "The service request is processed successfully.")),
		))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeConfirmed, res.Outcome)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, int32(3), f.apiCalls.Load())
		assert.Equal(t, int32(1), f.tokenCalls.Load())
	})

	t.Run("Still Processing Exhausts As Still Pending", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(status(http.StatusInternalServerError, stillProcessing)))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeError, res.Outcome)
		assert.Equal(t, domain.ErrorKindQueryExhausted, res.ErrorKind)
		assert.Equal(t, domain.ExhaustionStillPending, res.Exhaustion)
		assert.ErrorIs(t, res.Err, domain.ErrQueryExhausted)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, int32(3), f.apiCalls.Load())
	})

	t.Run("Server Errors Exhaust As Indeterminate", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(
			status(http.StatusInternalServerError, stillProcessing),
			status(http.StatusBadGateway, apiError{ErrorMessage: "Bad Gateway"}),
		))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.ErrorKindQueryExhausted, res.ErrorKind)
		assert.Equal(t, domain.ExhaustionIndeterminate, res.Exhaustion)
	})

	t.Run("Error Body With Cancellation Is Classified Immediately", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(status(http.StatusInternalServerError, apiError{ErrorCode: "500.001.1032", ErrorMessage: "Request cancelled by user"})))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeCancelled, res.Outcome)
		assert.Equal(t, int32(1), f.apiCalls.Load())
	})

	t.Run("Error Body With Timeout Is Classified Immediately", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(status(http.StatusBadRequest, apiError{ErrorCode: "400.001.1037", ErrorMessage: "DS timeout user cannot be reached"})))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeTimedOut, res.Outcome)
		assert.True(t, res.Definitive)
		assert.Equal(t, int32(1), f.apiCalls.Load())
	})

	t.Run("Gateway Timeout Text Is Retried Not Classified", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusGatewayTimeout)
			_, _ = w.Write([]byte("upstream request timeout"))
		})

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		require.Equal(t, domain.OutcomeError, res.Outcome)
		assert.Equal(t, domain.ErrorKindQueryExhausted, res.ErrorKind)
		assert.Equal(t, domain.ExhaustionIndeterminate, res.Exhaustion)
		assert.False(t, res.Definitive)
		assert.Equal(t, int32(3), f.apiCalls.Load())
	})

	t.Run("Proxy Request Timeout Is Transient", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(
			status(http.StatusRequestTimeout, map[string]string{"message": "request timed out"}),
			status(http.StatusOK, queryAnswer("1037", "DS timeout user cannot be reached")),
		))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeTimedOut, res.Outcome)
		assert.True(t, res.Definitive)
		assert.Equal(t, 2, res.Attempts)
	})

	t.Run("Client Error Is Terminal", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(status(http.StatusBadRequest, apiError{ErrorCode: "400.002.02", ErrorMessage: "Bad Request - Invalid CheckoutRequestID"})))

		res := f.client().QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeError, res.Outcome)
		assert.Equal(t, domain.ErrorKindClient, res.ErrorKind)
		assert.ErrorIs(t, res.Err, domain.ErrClientError)
		assert.Equal(t, int32(1), f.apiCalls.Load())
	})

	t.Run("Credential Problems", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {})
		cfg := testConfig(f.server.URL)
		cfg.ConsumerKey = ""

		res := NewClient(cfg, zap.NewNop()).QuerySTKPush(context.Background(), "ws_CO_123")

		assert.Equal(t, domain.OutcomeError, res.Outcome)
		assert.Equal(t, domain.ErrorKindCredentials, res.ErrorKind)
		assert.ErrorIs(t, res.Err, domain.ErrMissingCredentials)
		assert.Equal(t, int32(0), f.apiCalls.Load())
	})

	t.Run("Empty Checkout ID", func(t *testing.T) {
		f := newFakeDaraja(t, func(w http.ResponseWriter, r *http.Request) {})

		res := f.client().QuerySTKPush(context.Background(), "")

		assert.Equal(t, domain.ErrorKindClient, res.ErrorKind)
		assert.Equal(t, int32(0), f.tokenCalls.Load())
	})

	t.Run("Context Cancelled During Wait", func(t *testing.T) {
		f := newFakeDaraja(t, sequence(status(http.StatusInternalServerError, stillProcessing)))
		c := f.client(WithQueryRetry(retry.Policy{MaxAttempts: 3, Delay: time.Hour, Retryable: retry.IsTransient}))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		res := c.QuerySTKPush(ctx, "ws_CO_123")

		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, domain.ErrorKindCanceled, res.ErrorKind)
		assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
		assert.Equal(t, 1, res.Attempts)
	})
}
