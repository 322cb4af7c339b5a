package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"

	"organic-hub/models"
	"organic-hub/pricing"
)

// StripeGateway creates and checks Stripe payment intents.
type StripeGateway struct {
	intents       *paymentintent.Client
	webhookSecret string
	currency      string
}

func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{
		intents:       &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
		currency:      strings.ToLower(currency),
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreatePayment(ctx context.Context, order *models.Order) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(pricing.MinorUnits(order.Total)),
		Currency:    stripe.String(g.currency),
		Description: stripe.String("Organic Hub order " + order.OrderNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if order.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(order.Customer.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)
	params.SetIdempotencyKey("order-" + order.ID.String())

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &PaymentIntent{
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Provider:     g.Name(),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, paymentID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.intents.Get(paymentID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrUnknownPayment
		}
		return nil, fmt.Errorf("stripe get payment intent: %w", err)
	}
	return intentResult(pi), nil
}

func intentResult(pi *stripe.PaymentIntent) *PaymentResult {
	res := &PaymentResult{PaymentID: pi.ID, OrderID: pi.Metadata["order_id"], Amount: pi.Amount}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.State = PaymentStateSucceeded
	case stripe.PaymentIntentStatusCanceled:
		res.State = PaymentStateFailed
		res.Reason = string(pi.CancellationReason)
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			res.State = PaymentStateFailed
			res.Reason = pi.LastPaymentError.Msg
		} else {
			res.State = PaymentStatePending
		}
	default:
		res.State = PaymentStatePending
	}
	return res
}

// ParseWebhook verifies the signature and maps payment intent events.
// Other event types yield nil.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}

	var kind string
	switch event.Type {
	case "payment_intent.succeeded":
		kind = models.EventPaymentSucceeded
	case "payment_intent.payment_failed":
		kind = models.EventPaymentFailed
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	evt := &models.PaymentEvent{Type: kind, OrderID: pi.Metadata["order_id"], PaymentID: pi.ID}
	if pi.LastPaymentError != nil {
		evt.Reason = pi.LastPaymentError.Msg
	}
	return evt, nil
}
