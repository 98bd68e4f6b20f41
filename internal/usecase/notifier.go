// internal/usecase/notifier.go
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/events"
)

const publishTimeout = 5 * time.Second

// notifier publishes committed state changes. Failures are logged and never
// reach the caller.
type notifier struct {
	publisher events.Publisher
	logger    *zap.Logger
}

func (n notifier) publish(ctx context.Context, event events.DonationEvent) {
	if n.publisher == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.publisher.Publish(pctx, event); err != nil {
		n.logger.Warn("failed to publish donation event",
			zap.String("type", string(event.Type)),
			zap.String("checkout_request_id", event.CheckoutRequestID),
			zap.Error(err))
	}
}
