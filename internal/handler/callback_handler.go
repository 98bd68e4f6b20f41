// internal/handler/callback_handler.go
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

const maxCallbackBody = 64 << 10

type CallbackProcessor interface {
	ProcessSTKCallback(ctx context.Context, payload []byte) usecase.ReconcileResult
	ProcessTimeout(ctx context.Context, payload []byte) usecase.ReconcileResult
}

type CallbackHandler struct {
	callbackUC CallbackProcessor
	logger     *zap.Logger
}

func NewCallbackHandler(callbackUC CallbackProcessor, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackUC: callbackUC,
		logger:     logger.With(zap.String("component", "callback_handler")),
	}
}

// HandleMpesaSTKCallback reconciles the STK callback before acking, so a
// non-zero ack makes the provider redeliver.
func (h *CallbackHandler) HandleMpesaSTKCallback(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "stk", h.callbackUC.ProcessSTKCallback)
}

// HandleMpesaTimeout handles the provider's queue timeout notification.
func (h *CallbackHandler) HandleMpesaTimeout(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "timeout", h.callbackUC.ProcessTimeout)
}

func (h *CallbackHandler) handle(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	process func(context.Context, []byte) usecase.ReconcileResult,
) {
	h.logger.Info("received M-Pesa notification",
		zap.String("kind", kind),
		zap.String("remote_addr", r.RemoteAddr))

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("failed to read notification payload", zap.String("kind", kind), zap.Error(err))
		h.sendCallbackResponse(w, mpesa.Rejected("Failed to read payload"))
		return
	}

	res := process(r.Context(), payload)

	h.logger.Info("M-Pesa notification processed",
		zap.String("kind", kind),
		zap.String("checkout_request_id", res.CheckoutRequestID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("ack", res.Ack.ResultCode))
	h.sendCallbackResponse(w, res.Ack)
}

func (h *CallbackHandler) sendCallbackResponse(w http.ResponseWriter, ack mpesa.Ack) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		h.logger.Error("failed to encode callback response", zap.Error(err))
	}
}
