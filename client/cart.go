package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"organic-hub/models"
	"organic-hub/pkg/localstore"
	"organic-hub/pricing"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOutOfStock      = errors.New("not enough stock")
	ErrNotInCart       = errors.New("item not in cart")
)

// GuestLine is one line of the locally stored cart. The product is a
// snapshot taken when it was added, so totals can be computed offline.
type GuestLine struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Cart returns the server cart for a signed in user and the local cart
// otherwise.
func (c *Client) Cart(ctx context.Context) (*models.CartView, error) {
	if c.online() {
		var view models.CartView
		err := c.do(ctx, request{method: http.MethodGet, path: "/cart"}, &view)
		if !IsNetworkError(err) {
			return viewOrErr(&view, err)
		}
		c.logger.Warn("API unreachable, showing local cart", zap.Error(err))
	}
	return c.LocalCart()
}

// AddToCart adds qty of product. Offline and guest carts are kept locally.
func (c *Client) AddToCart(ctx context.Context, product models.Product, qty int) (*models.CartView, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if c.online() {
		var view models.CartView
		err := c.do(ctx, request{
			method: http.MethodPost,
			path:   "/cart/items",
			body:   models.CartItem{ProductID: product.ID.String(), Quantity: qty},
		}, &view)
		if !IsNetworkError(err) {
			return viewOrErr(&view, err)
		}
		c.logger.Warn("API unreachable, adding to local cart", zap.String("product_id", product.ID.String()), zap.Error(err))
	}

	return c.updateGuest(func(lines []GuestLine) ([]GuestLine, error) {
		for i := range lines {
			if lines[i].Product.ID == product.ID {
				if !product.InStock(lines[i].Quantity + qty) {
					return nil, ErrOutOfStock
				}
				lines[i].Product = product
				lines[i].Quantity += qty
				return lines, nil
			}
		}
		if !product.InStock(qty) {
			return nil, ErrOutOfStock
		}
		return append(lines, GuestLine{Product: product, Quantity: qty}), nil
	})
}

// UpdateQuantity sets the quantity of a line. Zero removes it.
func (c *Client) UpdateQuantity(ctx context.Context, productID string, qty int) (*models.CartView, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if c.online() {
		var view models.CartView
		err := c.do(ctx, request{
			method: http.MethodPut,
			path:   "/cart/items/" + url.PathEscape(productID),
			body:   map[string]int{"quantity": qty},
		}, &view)
		if !IsNetworkError(err) {
			return viewOrErr(&view, err)
		}
		c.logger.Warn("API unreachable, updating local cart", zap.String("product_id", productID), zap.Error(err))
	}

	return c.updateGuest(func(lines []GuestLine) ([]GuestLine, error) {
		for i := range lines {
			if lines[i].Product.ID.String() != productID {
				continue
			}
			if qty == 0 {
				return append(lines[:i], lines[i+1:]...), nil
			}
			if !lines[i].Product.InStock(qty) {
				return nil, ErrOutOfStock
			}
			lines[i].Quantity = qty
			return lines, nil
		}
		return nil, ErrNotInCart
	})
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*models.CartView, error) {
	if c.online() {
		var view models.CartView
		err := c.do(ctx, request{method: http.MethodDelete, path: "/cart/items/" + url.PathEscape(productID)}, &view)
		if !IsNetworkError(err) {
			return viewOrErr(&view, err)
		}
		c.logger.Warn("API unreachable, removing from local cart", zap.String("product_id", productID), zap.Error(err))
	}

	return c.updateGuest(func(lines []GuestLine) ([]GuestLine, error) {
		kept := lines[:0]
		for _, l := range lines {
			if l.Product.ID.String() != productID {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(lines) {
			return nil, ErrNotInCart
		}
		return kept, nil
	})
}

// ClearCart empties the local cart and, when signed in, the server cart.
func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.store.Remove(localstore.KeyCart); err != nil {
		return err
	}
	if !c.online() {
		return nil
	}
	err := c.do(ctx, request{method: http.MethodDelete, path: "/cart"}, nil)
	if IsNetworkError(err) {
		c.logger.Warn("API unreachable, server cart not cleared", zap.Error(err))
		return nil
	}
	return err
}

// SyncCart merges the local cart into the signed in user's server cart and
// clears the local copy once the server has accepted it.
func (c *Client) SyncCart(ctx context.Context) (*models.CartView, error) {
	if !c.online() {
		return nil, ErrNotAuthenticated
	}
	lines, err := c.guestLines()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return c.Cart(ctx)
	}

	items := make([]models.CartItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.CartItem{ProductID: l.Product.ID.String(), Quantity: l.Quantity})
	}
	var view models.CartView
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/cart/merge",
		body:   map[string]any{"items": pricing.MergeItems(nil, items)},
	}, &view); err != nil {
		return nil, err
	}
	if err := c.store.Remove(localstore.KeyCart); err != nil {
		c.logger.Warn("failed to clear local cart after sync", zap.Error(err))
	}
	return &view, nil
}

// LocalCart prices the locally stored cart.
func (c *Client) LocalCart() (*models.CartView, error) {
	lines, err := c.guestLines()
	if err != nil {
		return nil, err
	}
	return c.guestView(lines), nil
}

func (c *Client) guestLines() ([]GuestLine, error) {
	var lines []GuestLine
	if _, err := c.store.Get(localstore.KeyCart, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *Client) updateGuest(fn func([]GuestLine) ([]GuestLine, error)) (*models.CartView, error) {
	lines, err := localstore.Update(c.store, localstore.KeyCart, fn)
	if err != nil {
		return nil, err
	}
	return c.guestView(lines), nil
}

func (c *Client) guestView(lines []GuestLine) *models.CartView {
	items := make([]models.CartItem, 0, len(lines))
	products := make(map[string]models.Product, len(lines))
	for _, l := range lines {
		id := l.Product.ID.String()
		items = append(items, models.CartItem{ProductID: id, Quantity: l.Quantity})
		products[id] = l.Product
	}
	v := models.BuildCartView(items, products)
	v.Guest = true
	if u, ok := c.CurrentUser(); ok {
		v.OwnerID = u.ID.String()
	}
	v.UpdatedAt = c.now().UTC().Truncate(time.Second)
	return v
}

func viewOrErr(v *models.CartView, err error) (*models.CartView, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
