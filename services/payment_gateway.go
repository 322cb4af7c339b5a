package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"organic-hub/models"
	"organic-hub/pricing"
)

const (
	PaymentStateSucceeded = "succeeded"
	PaymentStatePending   = "pending"
	PaymentStateFailed    = "failed"
)

var ErrUnknownPayment = errors.New("unknown payment")

// PaymentIntent is what the storefront needs to complete a payment.
type PaymentIntent struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Provider     string `json:"provider"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Demo         bool   `json:"demo"`
}

// PaymentResult is the provider's view of a payment.
type PaymentResult struct {
	PaymentID string
	OrderID   string
	// Amount is in minor units.
	Amount int64
	State  string
	Reason string
}

type PaymentGateway interface {
	Name() string
	CreatePayment(ctx context.Context, order *models.Order) (*PaymentIntent, error)
	VerifyPayment(ctx context.Context, paymentID string) (*PaymentResult, error)
}

// WebhookParser is implemented by gateways that push status changes.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*models.PaymentEvent, error)
}

const demoPrefix = "demo_pay_"

// DemoGateway simulates a provider: every payment it creates verifies as
// succeeded.
type DemoGateway struct {
	currency string
}

func NewDemoGateway(currency string) *DemoGateway {
	if currency == "" {
		currency = "usd"
	}
	return &DemoGateway{currency: strings.ToLower(currency)}
}

func (g *DemoGateway) Name() string { return "demo" }

func (g *DemoGateway) CreatePayment(_ context.Context, order *models.Order) (*PaymentIntent, error) {
	id := demoPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return &PaymentIntent{
		PaymentID:    id,
		ClientSecret: id + "_secret",
		Provider:     g.Name(),
		Amount:       pricing.MinorUnits(order.Total),
		Currency:     g.currency,
		Demo:         true,
	}, nil
}

func (g *DemoGateway) VerifyPayment(_ context.Context, paymentID string) (*PaymentResult, error) {
	if !strings.HasPrefix(paymentID, demoPrefix) {
		return nil, ErrUnknownPayment
	}
	return &PaymentResult{PaymentID: paymentID, State: PaymentStateSucceeded}, nil
}

// IsDemoKey reports whether a configured Stripe key is a placeholder.
func IsDemoKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "your") || strings.Contains(key, "xxx") {
		return true
	}
	return !strings.HasPrefix(key, "sk_test_") && !strings.HasPrefix(key, "sk_live_") && !strings.HasPrefix(key, "rk_")
}
