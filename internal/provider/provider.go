// internal/provider/provider.go
package provider

import (
	"context"

	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
)

// PaymentRequester submits push-payment prompts.
type PaymentRequester interface {
	InitiateSTKPush(ctx context.Context, in mpesa.STKPushInput) mpesa.STKPushResult
}

// StatusPoller asks the provider how a prompt ended. It never writes.
type StatusPoller interface {
	QuerySTKPush(ctx context.Context, checkoutRequestID string) mpesa.QueryResult
}

// Gateway is the full provider surface used by the service.
type Gateway interface {
	PaymentRequester
	StatusPoller
}

// CallbackSynthesizer produces provider callbacks for simulated requests.
type CallbackSynthesizer interface {
	SuccessCallback(res mpesa.STKPushResult) ([]byte, error)
}

var (
	_ Gateway             = (*mpesa.Client)(nil)
	_ Gateway             = (*mpesa.Simulator)(nil)
	_ CallbackSynthesizer = (*mpesa.Simulator)(nil)
)
