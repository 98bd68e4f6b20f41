// internal/provider/mpesa/simulator.go
package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

// Simulator stands in for the provider when MPESA_SIMULATION is set. It
// applies the same input checks as Client but makes no network calls, and
// every result it returns is marked Simulated.
type Simulator struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewSimulator(logger *zap.Logger) *Simulator {
	return &Simulator{
		logger: logger.With(zap.String("component", "mpesa_simulator"), zap.Bool("simulated", true)),
		now:    time.Now,
	}
}

func (s *Simulator) InitiateSTKPush(_ context.Context, in STKPushInput) STKPushResult {
	if strings.TrimSpace(in.PhoneNumber) == "" || strings.TrimSpace(in.AccountReference) == "" {
		return failed(domain.ReasonMissingFields, domain.ErrMissingFields)
	}
	if in.Amount.LessThan(minAmount) {
		return failed(domain.ReasonAmountTooLow,
			fmt.Errorf("%w: got %s, minimum is %s", domain.ErrAmountTooLow, in.Amount, minAmount))
	}
	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return failed(domain.ReasonInvalidPhoneNumber, err)
	}

	id := ulid.Make().String()
	result := STKPushResult{
		CheckoutRequestID: "ws_CO_SIM_" + id,
		MerchantRequestID: "SIM-" + id,
		CustomerMessage:   "Simulated request accepted, no payment prompt was sent",
		PhoneNumber:       phone,
		Amount:            in.Amount.Round(0),
		Simulated:         true,
	}

	s.logger.Warn("simulated stk push",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("account_reference", in.AccountReference),
		zap.String("amount", in.Amount.String()))

	return result
}

// QuerySTKPush reports every simulated request as settled.
func (s *Simulator) QuerySTKPush(_ context.Context, checkoutRequestID string) QueryResult {
	desc := "The service request is processed successfully."
	return QueryResult{
		CheckoutRequestID: checkoutRequestID,
		Outcome:           ClassifyDescription(desc).Outcome,
		ResultCode:        "0",
		ResultDesc:        desc,
		Attempts:          1,
		Simulated:         true,
		Definitive:        true,
	}
}

// SuccessCallback builds the callback body the provider would post for a
// completed simulated payment.
func (s *Simulator) SuccessCallback(res STKPushResult) ([]byte, error) {
	if !res.OK() || !res.Simulated {
		return nil, fmt.Errorf("simulator: cannot settle a non-simulated or failed request")
	}

	receipt := "SIM" + ulid.Make().String()[19:]
	date := s.now().In(providerZone).Format(timestampLayout)

	body := map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"MerchantRequestID": res.MerchantRequestID,
				"CheckoutRequestID": res.CheckoutRequestID,
				"ResultCode":        0,
				"ResultDesc":        "The service request is processed successfully. (simulated)",
				"CallbackMetadata": map[string]interface{}{
					"Item": []map[string]interface{}{
						{"Name": "Amount", "Value": json.Number(res.Amount.String())},
						{"Name": "MpesaReceiptNumber", "Value": receipt},
						{"Name": "TransactionDate", "Value": json.Number(date)},
						{"Name": "PhoneNumber", "Value": json.Number(res.PhoneNumber)},
					},
				},
			},
		},
	}

	return json.Marshal(body)
}
