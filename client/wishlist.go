package client

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"organic-hub/models"
	"organic-hub/pkg/localstore"
)

func (c *Client) Wishlist(ctx context.Context) ([]models.WishlistEntry, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if c.online() {
		var res struct {
			Items []models.WishlistEntry `json:"items"`
		}
		err := c.do(ctx, request{method: http.MethodGet, path: "/wishlist"}, &res)
		if err == nil {
			return res.Items, nil
		}
		if !IsNetworkError(err) {
			return nil, err
		}
		c.logger.Warn("API unreachable, showing local wishlist", zap.Error(err))
	}

	var entries []models.WishlistEntry
	if _, err := c.store.Get(localstore.KeyWishlist, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToWishlist saves product. Adding a product twice is a no-op locally.
func (c *Client) AddToWishlist(ctx context.Context, product models.Product) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if c.online() {
		err := c.do(ctx, request{
			method: http.MethodPost,
			path:   "/wishlist",
			body:   map[string]string{"product_id": product.ID.String()},
		}, nil)
		if !IsNetworkError(err) {
			return err
		}
		c.logger.Warn("API unreachable, saving to local wishlist", zap.String("product_id", product.ID.String()), zap.Error(err))
	}

	_, err := localstore.Update(c.store, localstore.KeyWishlist, func(entries []models.WishlistEntry) ([]models.WishlistEntry, error) {
		for _, e := range entries {
			if e.Product.ID == product.ID {
				return entries, nil
			}
		}
		return append(entries, models.WishlistEntry{Product: product, AddedAt: c.now().UTC()}), nil
	})
	return err
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if c.online() {
		err := c.do(ctx, request{method: http.MethodDelete, path: "/wishlist/" + url.PathEscape(productID)}, nil)
		if !IsNetworkError(err) {
			return err
		}
		c.logger.Warn("API unreachable, removing from local wishlist", zap.String("product_id", productID), zap.Error(err))
	}
	return c.removeLocalWish(productID)
}

// MoveToCart moves one unit of a saved product into the cart.
func (c *Client) MoveToCart(ctx context.Context, product models.Product) (*models.CartView, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	id := product.ID.String()
	if c.online() {
		var res struct {
			Cart models.CartView `json:"cart"`
		}
		err := c.do(ctx, request{method: http.MethodPost, path: "/wishlist/" + url.PathEscape(id) + "/move-to-cart"}, &res)
		if err == nil {
			return &res.Cart, nil
		}
		if !IsNetworkError(err) {
			return nil, err
		}
	}

	view, err := c.AddToCart(ctx, product, 1)
	if err != nil {
		return nil, err
	}
	if err := c.removeLocalWish(id); err != nil {
		return nil, err
	}
	return view, nil
}

func (c *Client) removeLocalWish(productID string) error {
	_, err := localstore.Update(c.store, localstore.KeyWishlist, func(entries []models.WishlistEntry) ([]models.WishlistEntry, error) {
		kept := entries[:0]
		for _, e := range entries {
			if e.Product.ID.String() != productID {
				kept = append(kept, e)
			}
		}
		return kept, nil
	})
	return err
}
