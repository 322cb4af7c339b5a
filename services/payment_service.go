package services

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/pricing"
)

// PaymentConfig is exposed to the storefront so it can pick the demo or
// provider checkout.
type PaymentConfig struct {
	Provider       string `json:"provider"`
	Demo           bool   `json:"demo"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

type PaymentService interface {
	Config() PaymentConfig
	Create(ctx context.Context, userID, orderID string) (*PaymentIntent, error)
	Verify(ctx context.Context, userID, orderID, paymentID string) (*models.Order, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// HandleEvent applies a payment outcome pushed by the provider.
	HandleEvent(ctx context.Context, evt models.PaymentEvent) error
}

type paymentServiceImpl struct {
	gateway PaymentGateway
	orders  OrderService
	cfg     PaymentConfig
	logger  *zap.Logger
}

func NewPaymentService(gateway PaymentGateway, orders OrderService, cfg PaymentConfig, logger *zap.Logger) PaymentService {
	cfg.Provider = gateway.Name()
	_, cfg.Demo = gateway.(*DemoGateway)
	return &paymentServiceImpl{gateway: gateway, orders: orders, cfg: cfg, logger: logger}
}

func (s *paymentServiceImpl) Config() PaymentConfig { return s.cfg }

func (s *paymentServiceImpl) Create(ctx context.Context, userID, orderID string) (*PaymentIntent, error) {
	order, err := s.orders.GetMine(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case order.Source == models.SourceLocal:
		return nil, apperrors.Conflict("order is still being synced")
	case order.Status == models.StatusCancelled:
		return nil, apperrors.Conflict("order is cancelled")
	case order.PaymentStatus == models.PaymentPaid:
		return nil, apperrors.Conflict("order is already paid")
	}

	intent, err := s.gateway.CreatePayment(ctx, order)
	if err != nil {
		s.logger.Error("payment creation failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrPaymentFailed, err)
	}
	if err := s.orders.AttachPayment(ctx, orderID, intent.PaymentID); err != nil {
		return nil, err
	}
	s.logger.Info("payment created",
		zap.String("order_id", orderID),
		zap.String("payment_id", intent.PaymentID),
		zap.String("provider", intent.Provider),
	)
	return intent, nil
}

func (s *paymentServiceImpl) Verify(ctx context.Context, userID, orderID, paymentID string) (*models.Order, error) {
	order, err := s.orders.GetMine(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentID != "" && order.PaymentID != paymentID {
		return nil, apperrors.BadRequest("payment does not belong to this order")
	}

	res, err := s.gateway.VerifyPayment(ctx, paymentID)
	if err == ErrUnknownPayment {
		return nil, apperrors.NotFound("Payment not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to verify payment", err)
	}
	if !s.belongsTo(order, paymentID, res) {
		s.logger.Warn("payment does not match order",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
			zap.String("payment_order_id", res.OrderID),
			zap.Int64("amount", res.Amount),
		)
		return nil, apperrors.BadRequest("payment does not belong to this order")
	}

	switch res.State {
	case PaymentStateSucceeded:
		return s.orders.MarkPaid(ctx, orderID, paymentID)
	case PaymentStateFailed:
		if err := s.orders.MarkPaymentFailed(ctx, orderID, paymentID, res.Reason); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrPaymentFailed
	default:
		return nil, apperrors.New(http.StatusConflict, "Payment is not complete yet", nil)
	}
}

// belongsTo reports whether a verified payment was made for order. Demo
// payments carry no order reference, so they must have been attached by
// Create.
func (s *paymentServiceImpl) belongsTo(order *models.Order, paymentID string, res *PaymentResult) bool {
	if s.cfg.Demo {
		return order.PaymentID == paymentID
	}
	if res.OrderID != order.ID.String() {
		return false
	}
	return res.Amount == pricing.MinorUnits(order.Total)
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	parser, ok := s.gateway.(WebhookParser)
	if !ok {
		return apperrors.NotFound("webhooks are not enabled")
	}
	evt, err := parser.ParseWebhook(payload, signature)
	if err != nil {
		return apperrors.New(http.StatusBadRequest, "Invalid webhook", err)
	}
	if evt == nil {
		return nil
	}
	return s.HandleEvent(ctx, *evt)
}

func (s *paymentServiceImpl) HandleEvent(ctx context.Context, evt models.PaymentEvent) error {
	if evt.OrderID == "" {
		s.logger.Warn("payment event without order id", zap.String("type", evt.Type), zap.String("payment_id", evt.PaymentID))
		return nil
	}
	switch evt.Type {
	case models.EventPaymentSucceeded:
		_, err := s.orders.MarkPaid(ctx, evt.OrderID, evt.PaymentID)
		return err
	case models.EventPaymentFailed:
		return s.orders.MarkPaymentFailed(ctx, evt.OrderID, evt.PaymentID, evt.Reason)
	default:
		s.logger.Debug("payment event ignored", zap.String("type", evt.Type))
		return nil
	}
}
