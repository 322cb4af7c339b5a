package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"organic-hub/models"
	"organic-hub/pricing"
)

type PaymentConfig struct {
	Provider       string `json:"provider"`
	Demo           bool   `json:"demo"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

type PaymentIntent struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Provider     string `json:"provider"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Demo         bool   `json:"demo"`
}

type PaymentResult struct {
	Intent *PaymentIntent
	Order  *models.Order
	// Completed is false when a real provider still has to confirm the
	// payment with Intent.ClientSecret.
	Completed bool
}

func (c *Client) PaymentConfig(ctx context.Context) (*PaymentConfig, error) {
	var cfg PaymentConfig
	if err := c.do(ctx, request{method: http.MethodGet, path: "/payments/config"}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Pay starts payment for an order. Demo intents are verified straight away.
// Orders held only in the local store are marked paid locally.
func (c *Client) Pay(ctx context.Context, orderID string) (*PaymentResult, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if _, ok := c.findLocal(orderID); ok {
		return c.payLocal(orderID)
	}
	if !c.online() {
		return nil, ErrNotAuthenticated
	}

	var intent PaymentIntent
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payments",
		body:   map[string]string{"order_id": orderID},
	}, &intent); err != nil {
		return nil, err
	}
	if !intent.Demo {
		return &PaymentResult{Intent: &intent}, nil
	}

	order, err := c.VerifyPayment(ctx, orderID, intent.PaymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Intent: &intent, Order: order, Completed: true}, nil
}

func (c *Client) VerifyPayment(ctx context.Context, orderID, paymentID string) (*models.Order, error) {
	if !c.online() {
		return nil, ErrNotAuthenticated
	}
	var res struct {
		Order models.Order `json:"order"`
	}
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payments/verify",
		body:   map[string]string{"order_id": orderID, "payment_id": paymentID},
	}, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) payLocal(orderID string) (*PaymentResult, error) {
	intent := &PaymentIntent{PaymentID: "demo_local_" + uuid.NewString(), Provider: "demo", Demo: true}
	order, err := c.updateLocal(orderID, func(o *models.Order) error {
		if o.Status == models.StatusCancelled {
			return &APIError{Status: http.StatusConflict, Message: "order is cancelled"}
		}
		if o.PaymentStatus == models.PaymentPaid {
			intent.PaymentID = o.PaymentID
			return nil
		}
		now := c.now().UTC()
		o.PaymentStatus = models.PaymentPaid
		o.PaymentID = intent.PaymentID
		o.PaidAt = &now
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	intent.Amount = pricing.MinorUnits(order.Total)
	return &PaymentResult{Intent: intent, Order: order, Completed: true}, nil
}
