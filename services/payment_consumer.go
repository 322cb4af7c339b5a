package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
)

// MessagePoller is satisfied by awspkg.SQSConsumer.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// PaymentEventConsumer applies payment events delivered through SQS, usually
// fanned out from an SNS topic.
type PaymentEventConsumer struct {
	poller   MessagePoller
	payments PaymentService
	logger   *zap.Logger
}

func NewPaymentEventConsumer(poller MessagePoller, payments PaymentService, logger *zap.Logger) *PaymentEventConsumer {
	return &PaymentEventConsumer{poller: poller, payments: payments, logger: logger}
}

func (c *PaymentEventConsumer) Start(ctx context.Context) {
	c.logger.Info("payment event consumer started")
	if err := c.poller.StartPolling(ctx, c.Handle); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("payment event consumer stopped", zap.Error(err))
	}
}

// Handle processes one message body. Malformed messages and events the
// order service rejects are dropped. Other failures are returned so the
// message is redelivered.
func (c *PaymentEventConsumer) Handle(ctx context.Context, body string) error {
	var evt models.PaymentEvent
	if err := json.Unmarshal([]byte(awspkg.UnwrapSNSEnvelope(body)), &evt); err != nil {
		c.logger.Warn("invalid payment event", zap.Error(err))
		return nil
	}

	if err := c.payments.HandleEvent(ctx, evt); err != nil {
		if appErr := apperrors.As(err); appErr.Code < http.StatusInternalServerError {
			c.logger.Warn("payment event rejected", zap.String("order_id", evt.OrderID), zap.String("reason", appErr.Message))
			return nil
		}
		return err
	}
	c.logger.Info("payment event applied",
		zap.String("type", evt.Type),
		zap.String("order_id", evt.OrderID),
		zap.String("payment_id", evt.PaymentID),
	)
	return nil
}
