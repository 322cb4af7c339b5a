package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"organic-hub/models"
	"organic-hub/pkg/localstore"
	"organic-hub/pricing"
)

var ErrEmptyCart = errors.New("cart is empty")

type CheckoutInput struct {
	Cart            *models.CartView
	ShippingAddress models.Address
	PaymentMethod   models.PaymentMethod
	Notes           string
}

type CheckoutResult struct {
	Order *models.Order `json:"order"`
	// Offline is set when the order was stored locally, either by the API
	// while its database was down or by this client while the API was.
	Offline bool `json:"offline"`
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

type OrderList struct {
	Orders      []models.Order `json:"orders"`
	LocalOrders []models.Order `json:"local_orders"`
	Meta        Meta           `json:"meta"`
	// Offline is set when the API could not be reached and only local
	// orders are listed.
	Offline bool `json:"-"`
}

// PlaceOrder checks out the given cart. When the API is unreachable the
// order is priced locally and appended to the local orders list.
func (c *Client) PlaceOrder(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.Cart == nil || len(in.Cart.Items) == 0 {
		return nil, ErrEmptyCart
	}
	user, ok := c.CurrentUser()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if c.online() {
		body := map[string]any{
			"shipping_address": in.ShippingAddress,
			"payment_method":   in.PaymentMethod,
			"notes":            in.Notes,
		}
		// Without items the API checks out and clears the stored server cart.
		if in.Cart.Guest {
			items := make([]models.CartItem, 0, len(in.Cart.Items))
			for _, l := range in.Cart.Items {
				items = append(items, models.CartItem{ProductID: l.ProductID, Quantity: l.Quantity})
			}
			body["items"] = items
		}
		var res CheckoutResult
		err := c.do(ctx, request{
			method:  http.MethodPost,
			path:    "/orders",
			body:    body,
			headers: http.Header{"Idempotency-Key": {uuid.NewString()}},
		}, &res)
		if err == nil {
			c.clearLocalCart()
			return &res, nil
		}
		if !IsNetworkError(err) {
			return nil, err
		}
		c.logger.Warn("API unreachable, storing order locally", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	order := c.localOrder(user, in)
	if _, err := localstore.Update(c.store, localstore.KeyOrders, func(orders []models.Order) ([]models.Order, error) {
		return append(orders, *order), nil
	}); err != nil {
		return nil, err
	}
	c.clearLocalCart()
	return &CheckoutResult{Order: order, Offline: true}, nil
}

func (c *Client) localOrder(user *models.User, in CheckoutInput) *models.Order {
	now := c.now().UTC()
	cart := in.Cart
	fee := pricing.ShippingFee(cart.TotalPrice, c.cfg.FreeShippingThreshold, c.cfg.ShippingFee)

	order := &models.Order{
		ID:     uuid.New(),
		UserID: user.ID,
		Customer: models.Customer{
			Name:  user.Name,
			Email: user.Email,
			Phone: user.Phone,
		},
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Status:          models.StatusPending,
		Subtotal:        cart.Subtotal,
		Savings:         cart.TotalSavings,
		ShippingFee:     fee,
		Total:           pricing.Add(cart.TotalPrice, fee),
		Source:          models.SourceLocal,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.Customer.Phone == "" {
		order.Customer.Phone = in.ShippingAddress.Phone
	}
	order.OrderNumber = models.OrderNumber(order.ID, now)
	for _, l := range cart.Items {
		pid, _ := uuid.Parse(l.ProductID)
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: pid,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
			Total:     l.Total,
		})
	}
	return order
}

// ListOrders lists the signed in user's orders. Orders placed offline by
// this client are always included in LocalOrders.
func (c *Client) ListOrders(ctx context.Context, page, limit int) (*OrderList, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	local, err := c.LocalOrders()
	if err != nil {
		return nil, err
	}

	if c.online() {
		q := url.Values{}
		if page > 0 {
			q.Set("page", strconv.Itoa(page))
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		var list OrderList
		err := c.do(ctx, request{method: http.MethodGet, path: "/orders", query: q}, &list)
		if err == nil {
			list.LocalOrders = append(list.LocalOrders, local...)
			return &list, nil
		}
		if !IsNetworkError(err) {
			return nil, err
		}
		c.logger.Warn("API unreachable, listing local orders", zap.Error(err))
	}

	return &OrderList{
		Orders:      []models.Order{},
		LocalOrders: local,
		Meta:        Meta{Page: 1, Limit: len(local), Total: int64(len(local)), TotalPages: 1},
		Offline:     true,
	}, nil
}

// GetOrder looks in the local orders list first.
func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if o, ok := c.findLocal(id); ok {
		return o, nil
	}
	if !c.online() {
		return nil, ErrNotAuthenticated
	}
	var order models.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/" + url.PathEscape(id)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels a local order in place or asks the API to cancel.
func (c *Client) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	if _, ok := c.findLocal(id); ok {
		return c.updateLocal(id, func(o *models.Order) error {
			if !o.Status.Cancellable() {
				return &APIError{Status: http.StatusConflict, Message: "order can no longer be cancelled"}
			}
			now := c.now().UTC()
			o.Status = models.StatusCancelled
			o.CancelledAt = &now
			o.UpdatedAt = now
			return nil
		})
	}
	if !c.online() {
		return nil, ErrNotAuthenticated
	}
	var order models.Order
	if err := c.do(ctx, request{method: http.MethodPost, path: "/orders/" + url.PathEscape(id) + "/cancel"}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// LocalOrders returns the current user's locally stored orders, newest first.
func (c *Client) LocalOrders() ([]models.Order, error) {
	user, ok := c.CurrentUser()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	var all []models.Order
	if _, err := c.store.Get(localstore.KeyOrders, &all); err != nil {
		return nil, err
	}
	mine := make([]models.Order, 0, len(all))
	for _, o := range all {
		if o.UserID == user.ID {
			mine = append(mine, o)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	return mine, nil
}

func (c *Client) findLocal(id string) (*models.Order, bool) {
	orders, err := c.LocalOrders()
	if err != nil {
		return nil, false
	}
	for i := range orders {
		if orders[i].ID.String() == id || orders[i].OrderNumber == id {
			return &orders[i], true
		}
	}
	return nil, false
}

func (c *Client) updateLocal(id string, fn func(*models.Order) error) (*models.Order, error) {
	var updated models.Order
	_, err := localstore.Update(c.store, localstore.KeyOrders, func(orders []models.Order) ([]models.Order, error) {
		for i := range orders {
			if orders[i].ID.String() != id && orders[i].OrderNumber != id {
				continue
			}
			if err := fn(&orders[i]); err != nil {
				return nil, err
			}
			updated = orders[i]
			return orders, nil
		}
		return nil, &APIError{Status: http.StatusNotFound, Message: "order not found"}
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) clearLocalCart() {
	if err := c.store.Remove(localstore.KeyCart); err != nil {
		c.logger.Warn("failed to clear local cart", zap.Error(err))
	}
}
