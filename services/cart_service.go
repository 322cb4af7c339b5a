package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
	"organic-hub/pricing"
	"organic-hub/repository"
)

type CartService interface {
	GetCart(ctx context.Context, owner repository.CartOwner) (*models.CartView, error)
	AddItem(ctx context.Context, owner repository.CartOwner, productID string, qty int) (*models.CartView, error)
	// SetQuantity replaces the line quantity; zero removes the line.
	SetQuantity(ctx context.Context, owner repository.CartOwner, productID string, qty int) (*models.CartView, error)
	RemoveItem(ctx context.Context, owner repository.CartOwner, productID string) (*models.CartView, error)
	Clear(ctx context.Context, owner repository.CartOwner) error
	// MergeGuest folds the guest cart into the user's cart and deletes it.
	MergeGuest(ctx context.Context, guestID, userID string) (*models.CartView, error)
	// MergeItems folds client-held guest items into the user's cart.
	MergeItems(ctx context.Context, userID string, items []models.CartItem) (*models.CartView, error)
	// Quote prices items against current products, rejecting unknown
	// products and quantities above stock.
	Quote(ctx context.Context, items []models.CartItem) (*models.CartView, map[string]models.Product, error)
}

type cartServiceImpl struct {
	repo     repository.CartRepository
	products ProductService
	metrics  Metrics
	logger   *zap.Logger
}

func NewCartService(repo repository.CartRepository, products ProductService, metrics Metrics, logger *zap.Logger) CartService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &cartServiceImpl{repo: repo, products: products, metrics: metrics, logger: logger}
}

func (s *cartServiceImpl) load(ctx context.Context, owner repository.CartOwner) (*models.Cart, error) {
	if owner.ID == "" {
		return nil, apperrors.BadRequest("missing cart owner")
	}
	cart, err := s.repo.GetCart(ctx, owner)
	if err != nil {
		return nil, apperrors.Internal("failed to load cart", err)
	}
	if cart == nil {
		cart = &models.Cart{OwnerID: owner.ID, Guest: owner.Guest, Items: []models.CartItem{}}
	}
	return cart, nil
}

func (s *cartServiceImpl) save(ctx context.Context, owner repository.CartOwner, cart *models.Cart) (*models.CartView, error) {
	if err := s.repo.SaveCart(ctx, owner, cart); err != nil {
		return nil, apperrors.Internal("failed to save cart", err)
	}
	return s.view(ctx, cart)
}

func (s *cartServiceImpl) GetCart(ctx context.Context, owner repository.CartOwner) (*models.CartView, error) {
	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *cartServiceImpl) AddItem(ctx context.Context, owner repository.CartOwner, productID string, qty int) (*models.CartView, error) {
	if qty <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, productID, cart.Quantity(productID)+qty); err != nil {
		return nil, err
	}
	cart.Items = pricing.MergeItems(cart.Items, []models.CartItem{{ProductID: productID, Quantity: qty}})
	return s.save(ctx, owner, cart)
}

func (s *cartServiceImpl) SetQuantity(ctx context.Context, owner repository.CartOwner, productID string, qty int) (*models.CartView, error) {
	if qty < 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	if qty == 0 {
		return s.RemoveItem(ctx, owner, productID)
	}
	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart.Quantity(productID) == 0 {
		return nil, apperrors.NotFound("item not in cart")
	}
	if err := s.checkStock(ctx, productID, qty); err != nil {
		return nil, err
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = qty
		}
	}
	return s.save(ctx, owner, cart)
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, owner repository.CartOwner, productID string) (*models.CartView, error) {
	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(cart.Items) {
		return nil, apperrors.NotFound("item not in cart")
	}
	cart.Items = kept
	return s.save(ctx, owner, cart)
}

func (s *cartServiceImpl) Clear(ctx context.Context, owner repository.CartOwner) error {
	if err := s.repo.DeleteCart(ctx, owner); err != nil {
		return apperrors.Internal("failed to clear cart", err)
	}
	return nil
}

func (s *cartServiceImpl) MergeGuest(ctx context.Context, guestID, userID string) (*models.CartView, error) {
	guestOwner := repository.CartOwner{ID: guestID, Guest: true}
	guest, err := s.load(ctx, guestOwner)
	if err != nil {
		return nil, err
	}
	view, err := s.MergeItems(ctx, userID, guest.Items)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCart(ctx, guestOwner); err != nil {
		s.logger.Warn("guest cart not deleted after merge", zap.String("guest_id", guestID), zap.Error(err))
	}
	return view, nil
}

func (s *cartServiceImpl) MergeItems(ctx context.Context, userID string, items []models.CartItem) (*models.CartView, error) {
	owner := repository.CartOwner{ID: userID}
	cart, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return s.view(ctx, cart)
	}

	merged := pricing.MergeItems(cart.Items, items)
	ids := make([]string, 0, len(merged))
	for _, it := range merged {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.Lookup(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load products", err)
	}

	cart.Items = cart.Items[:0]
	for _, it := range merged {
		p, ok := products[it.ProductID]
		if !ok || p.Stock <= 0 {
			continue
		}
		if it.Quantity > p.Stock {
			it.Quantity = p.Stock
		}
		cart.Items = append(cart.Items, it)
	}

	count(s.metrics, awspkg.MetricCartMerges, nil)
	s.logger.Info("cart merged", zap.String("user_id", userID), zap.Int("incoming", len(items)), zap.Int("lines", len(cart.Items)))
	return s.save(ctx, owner, cart)
}

func (s *cartServiceImpl) checkStock(ctx context.Context, productID string, want int) error {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.InStock(want) {
		return apperrors.ErrInsufficientStock
	}
	return nil
}

// view prices the cart. Lines whose product no longer exists are left out.
func (s *cartServiceImpl) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.Lookup(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load products", err)
	}
	v := models.BuildCartView(cart.Items, products)
	v.OwnerID = cart.OwnerID
	v.Guest = cart.Guest
	v.UpdatedAt = cart.UpdatedAt
	return v, nil
}

func (s *cartServiceImpl) Quote(ctx context.Context, items []models.CartItem) (*models.CartView, map[string]models.Product, error) {
	items = pricing.MergeItems(nil, items)
	if len(items) == 0 {
		return nil, nil, apperrors.ErrEmptyCart
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.Lookup(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, apperrors.Wrap(apperrors.ErrProductNotFound, fmt.Errorf("product %s", it.ProductID))
		}
		if !p.InStock(it.Quantity) {
			return nil, nil, apperrors.Wrap(apperrors.ErrInsufficientStock, fmt.Errorf("%s: want %d, have %d", p.Name, it.Quantity, p.Stock))
		}
	}
	v := models.BuildCartView(items, products)
	v.UpdatedAt = time.Now().UTC()
	return v, products, nil
}
