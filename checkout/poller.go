package checkout

import (
	"context"
	"time"

	"checkout-svc/middleware"
	"checkout-svc/models"

	"go.uber.org/zap"
)

// watchPayment starts the bounded polling watcher for a pending card
// payment: one status query per interval, up to maxPollAttempts. The
// watcher holds a cancel func registered on the session, so any
// transition out of the processing step stops it, and every transition
// it performs itself is conditional on still being at that step. A
// late result can never mutate a state the user already left.
func (o *Orchestrator) watchPayment(session *Session, orderID int, total float64, paymentID string) {
	ctx, cancel := context.WithCancel(context.Background())
	if !session.registerPollCancel(models.StepProcessing, cancel) {
		cancel()
		return
	}

	go func() {
		defer cancel()

		ticker := time.NewTicker(o.pollInterval)
		defer ticker.Stop()

		for attempt := 1; attempt <= o.maxPollAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			status, err := o.gateway.PaymentStatus(ctx, paymentID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// A transport hiccup consumes an attempt but is not a
				// rejection; the next tick tries again.
				middleware.RecordPaymentPoll("error")
				o.logger.Warn("Payment status query failed",
					zap.String("payment_id", paymentID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			middleware.RecordPaymentPoll(status)

			switch status {
			case models.PollStatusConfirmed, models.PollStatusReceived:
				if session.transitionFrom(models.StepProcessing,
					models.ConfirmationState(orderID, total, models.PaymentMethodGateway, "")) {
					o.logger.Info("Card payment confirmed",
						zap.Int("order_id", orderID),
						zap.String("payment_id", paymentID),
						zap.Int("attempts", attempt),
					)
					o.publishEvent(ctx, &models.Order{
						ID:            orderID,
						UserID:        session.UserID,
						TotalAmount:   total,
						PaymentMethod: models.PaymentMethodGateway,
					}, "payment_confirmed")
				}
				return

			case models.PollStatusPending:
				// Keep waiting.

			default:
				if session.transitionFrom(models.StepProcessing,
					models.ShippingStateWithErrors(nil, "Pagamento recusado pela operadora")) {
					o.logger.Info("Card payment rejected while polling",
						zap.Int("order_id", orderID),
						zap.String("payment_id", paymentID),
						zap.String("status", status),
					)
				}
				return
			}
		}

		// Ceiling reached without resolution: a degraded "check later"
		// acknowledgement with no payment link, not a failure.
		if session.transitionFrom(models.StepProcessing,
			models.ConfirmationState(orderID, total, models.PaymentMethodGateway, "")) {
			o.logger.Info("Payment polling exhausted",
				zap.Int("order_id", orderID),
				zap.String("payment_id", paymentID),
				zap.Int("attempts", o.maxPollAttempts),
			)
		}
	}()
}
