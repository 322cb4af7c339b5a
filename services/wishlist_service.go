package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/repository"
)

type WishlistService interface {
	// List returns saved products, newest first. Products that no longer
	// exist are skipped.
	List(ctx context.Context, userID string) ([]models.WishlistEntry, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	// MoveToCart adds one unit to the user's cart and drops the product
	// from the wishlist.
	MoveToCart(ctx context.Context, userID, productID string) (*models.CartView, error)
}

type wishlistServiceImpl struct {
	repo     repository.WishlistRepository
	products ProductService
	cart     CartService
	logger   *zap.Logger
	now      func() time.Time
}

func NewWishlistService(repo repository.WishlistRepository, products ProductService, cart CartService, logger *zap.Logger) WishlistService {
	return &wishlistServiceImpl{repo: repo, products: products, cart: cart, logger: logger, now: time.Now}
}

func (s *wishlistServiceImpl) List(ctx context.Context, userID string) ([]models.WishlistEntry, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load wishlist", err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.Lookup(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load products", err)
	}

	out := make([]models.WishlistEntry, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		out = append(out, models.WishlistEntry{Product: p, AddedAt: it.AddedAt})
	}
	return out, nil
}

func (s *wishlistServiceImpl) Add(ctx context.Context, userID, productID string) error {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return err
	}
	item := models.WishlistItem{UserID: userID, ProductID: productID, AddedAt: s.now().UTC()}
	if err := s.repo.Add(ctx, item); err != nil {
		return apperrors.Internal("failed to update wishlist", err)
	}
	return nil
}

func (s *wishlistServiceImpl) Remove(ctx context.Context, userID, productID string) error {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return apperrors.Internal("failed to update wishlist", err)
	}
	return nil
}

func (s *wishlistServiceImpl) MoveToCart(ctx context.Context, userID, productID string) (*models.CartView, error) {
	view, err := s.cart.AddItem(ctx, repository.CartOwner{ID: userID}, productID, 1)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		s.logger.Warn("moved item left in wishlist", zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
	}
	return view, nil
}
