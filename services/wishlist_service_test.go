package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/repository"
)

type memWishlist struct {
	items map[string][]models.WishlistItem
}

func (w *memWishlist) List(_ context.Context, userID string) ([]models.WishlistItem, error) {
	return w.items[userID], nil
}

func (w *memWishlist) Add(_ context.Context, item models.WishlistItem) error {
	for _, it := range w.items[item.UserID] {
		if it.ProductID == item.ProductID {
			return nil
		}
	}
	w.items[item.UserID] = append([]models.WishlistItem{item}, w.items[item.UserID]...)
	return nil
}

func (w *memWishlist) Remove(_ context.Context, userID, productID string) error {
	kept := w.items[userID][:0]
	for _, it := range w.items[userID] {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	w.items[userID] = kept
	return nil
}

func TestWishlistAddListRemove(t *testing.T) {
	figs := product("Figs", 6, 5, nil)
	gone := product("Gone", 1, 1, nil)
	catalog := newStubCatalog(figs)
	repo := &memWishlist{items: map[string][]models.WishlistItem{
		"u1": {{UserID: "u1", ProductID: gone.ID.String(), AddedAt: time.Now()}},
	}}
	svc := NewWishlistService(repo, catalog, nil, testLogger)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", figs.ID.String()))
	require.NoError(t, svc.Add(ctx, "u1", figs.ID.String()))
	assert.ErrorIs(t, svc.Add(ctx, "u1", "unknown"), apperrors.ErrProductNotFound)

	entries, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Figs", entries[0].Product.Name)

	require.NoError(t, svc.Remove(ctx, "u1", figs.ID.String()))
	entries, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWishlistMoveToCart(t *testing.T) {
	figs := product("Figs", 6, 5, nil)
	catalog := newStubCatalog(figs)
	carts := newMemCartRepo()
	cart := NewCartService(carts, catalog, nil, testLogger)
	repo := &memWishlist{items: map[string][]models.WishlistItem{}}
	svc := NewWishlistService(repo, catalog, cart, testLogger)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", figs.ID.String()))
	view, err := svc.MoveToCart(ctx, "u1", figs.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
	assert.Empty(t, repo.items["u1"])

	stored, _ := carts.GetCart(ctx, repository.CartOwner{ID: "u1"})
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Quantity(figs.ID.String()))
}
