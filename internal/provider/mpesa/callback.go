// internal/provider/mpesa/callback.go
package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

// ============================================
// CALLBACKS
// ============================================

// Provider timestamps are East Africa Time.
var providerZone = time.FixedZone("EAT", 3*60*60)

// ResultCode accepts both 0 and "0" on the wire.
type ResultCode int

func (c *ResultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("invalid ResultCode %q", b)
	}
	*c = ResultCode(n)
	return nil
}

func (c ResultCode) String() string {
	return strconv.Itoa(int(c))
}

// CallbackItem is one entry of CallbackMetadata. Value is kept raw because
// the provider sends numbers and strings interchangeably.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

type STKCallback struct {
	MerchantRequestID string      `json:"MerchantRequestID"`
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	ResultCode        *ResultCode `json:"ResultCode"`
	ResultDesc        string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

// STKCallbackRequest is the body posted to the callback url.
type STKCallbackRequest struct {
	Body struct {
		StkCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackResult is a validated STK callback. The metadata fields are only
// set when Success is true.
type CallbackResult struct {
	CheckoutRequestID  string
	MerchantRequestID  string
	ResultCode         int
	ResultDesc         string
	Success            bool
	Amount             *decimal.Decimal
	MpesaReceiptNumber string
	PhoneNumber        string
	TransactionDate    *time.Time
}

// ParseSTKCallback decodes and validates a callback body. Every error wraps
// domain.ErrInvalidPayload.
func ParseSTKCallback(payload []byte) (*CallbackResult, error) {
	var req STKCallbackRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}

	cb := req.Body.StkCallback
	if cb == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", domain.ErrInvalidPayload)
	}
	if cb.CheckoutRequestID == "" || cb.MerchantRequestID == "" {
		return nil, fmt.Errorf("%w: missing request ids", domain.ErrInvalidPayload)
	}
	if cb.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", domain.ErrInvalidPayload)
	}

	result := &CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        int(*cb.ResultCode),
		ResultDesc:        cb.ResultDesc,
		Success:           *cb.ResultCode == 0,
	}
	if !result.Success {
		return result, nil
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if err := result.applyItem(item); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidPayload, item.Name, err)
			}
		}
	}
	if result.MpesaReceiptNumber == "" {
		return nil, fmt.Errorf("%w: successful callback without MpesaReceiptNumber", domain.ErrInvalidPayload)
	}

	return result, nil
}

func (r *CallbackResult) applyItem(item CallbackItem) error {
	raw := rawValue(item.Value)
	if raw == "" {
		return nil
	}

	switch item.Name {
	case "Amount":
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		r.Amount = &amount
	case "MpesaReceiptNumber":
		r.MpesaReceiptNumber = raw
	case "PhoneNumber":
		// Large numbers may arrive in exponent form.
		if n, err := decimal.NewFromString(raw); err == nil {
			raw = n.String()
		}
		r.PhoneNumber = raw
	case "TransactionDate":
		if n, err := decimal.NewFromString(raw); err == nil {
			raw = n.String()
		}
		ts, err := time.ParseInLocation(timestampLayout, raw, providerZone)
		if err != nil {
			return err
		}
		r.TransactionDate = &ts
	}
	return nil
}

// rawValue renders a JSON scalar as text, unquoting strings.
func rawValue(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(v)
}

// TimeoutNotification is the body posted to the timeout url.
type TimeoutNotification struct {
	CheckoutRequestID string      `json:"CheckoutRequestID"`
	MerchantRequestID string      `json:"MerchantRequestID"`
	ResultCode        *ResultCode `json:"ResultCode,omitempty"`
	ResultDesc        string      `json:"ResultDesc"`
}

// ParseTimeout decodes and validates a timeout notification.
func ParseTimeout(payload []byte) (*TimeoutNotification, error) {
	var n TimeoutNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	if n.CheckoutRequestID == "" || n.MerchantRequestID == "" {
		return nil, fmt.Errorf("%w: missing request ids", domain.ErrInvalidPayload)
	}
	if n.ResultDesc == "" {
		n.ResultDesc = "Request timed out"
	}
	return &n, nil
}

// Ack is the acknowledgement returned to the provider. A non-zero
// ResultCode asks it to redeliver.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func Accepted(desc string) Ack { return Ack{ResultCode: 0, ResultDesc: desc} }

func Rejected(desc string) Ack { return Ack{ResultCode: 1, ResultDesc: desc} }
