package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/pricing"
	"organic-hub/repository"
)

func newTestCart(products ...models.Product) (CartService, *memCartRepo) {
	repo := newMemCartRepo()
	return NewCartService(repo, newStubCatalog(products...), nil, testLogger), repo
}

func TestCartAddItemSumsQuantity(t *testing.T) {
	apples := product("Apples", 2.50, 20, nil)
	svc, _ := newTestCart(apples)
	owner := repository.CartOwner{ID: "guest-1", Guest: true}
	ctx := context.Background()

	_, err := svc.AddItem(ctx, owner, apples.ID.String(), 2)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, owner, apples.ID.String(), 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, 5, view.TotalItems)
	assert.Equal(t, 12.50, view.TotalPrice)
	assert.True(t, view.Guest)
}

func TestCartBulkDiscountTotals(t *testing.T) {
	rice := product("Brown Rice", 4.00, 50, &pricing.Tier{MinQty: 5, DiscountPercent: 10})
	honey := product("Raw Honey", 9.99, 10, nil)
	svc, _ := newTestCart(rice, honey)
	owner := repository.CartOwner{ID: "u1"}
	ctx := context.Background()

	_, err := svc.AddItem(ctx, owner, rice.ID.String(), 5)
	require.NoError(t, err)
	view, err := svc.AddItem(ctx, owner, honey.ID.String(), 1)
	require.NoError(t, err)

	assert.Equal(t, 29.99, view.Subtotal)
	assert.Equal(t, 2.00, view.TotalSavings)
	assert.Equal(t, 27.99, view.TotalPrice)
	require.Contains(t, view.BulkDiscounts, rice.ID.String())
	assert.NotContains(t, view.BulkDiscounts, honey.ID.String())
	assert.True(t, view.Items[0].BulkApplied)
	assert.False(t, view.Items[1].BulkApplied)
}

func TestCartBulkDiscountBelowMinimum(t *testing.T) {
	rice := product("Brown Rice", 4.00, 50, &pricing.Tier{MinQty: 5, DiscountPercent: 10})
	svc, _ := newTestCart(rice)
	owner := repository.CartOwner{ID: "u1"}

	view, err := svc.AddItem(context.Background(), owner, rice.ID.String(), 4)
	require.NoError(t, err)
	assert.Zero(t, view.TotalSavings)
	assert.Empty(t, view.BulkDiscounts)
}

func TestCartRejectsQuantityAboveStock(t *testing.T) {
	kale := product("Kale", 3.00, 2, nil)
	svc, _ := newTestCart(kale)
	owner := repository.CartOwner{ID: "u1"}

	_, err := svc.AddItem(context.Background(), owner, kale.ID.String(), 3)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	_, err = svc.AddItem(context.Background(), owner, kale.ID.String(), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestCartRejectsUnknownProduct(t *testing.T) {
	svc, _ := newTestCart()
	_, err := svc.AddItem(context.Background(), repository.CartOwner{ID: "u1"}, "missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestCartSetQuantityZeroRemovesOnlyItem(t *testing.T) {
	kale := product("Kale", 3.00, 10, nil)
	svc, repo := newTestCart(kale)
	owner := repository.CartOwner{ID: "u1"}
	ctx := context.Background()

	_, err := svc.AddItem(ctx, owner, kale.ID.String(), 2)
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, owner, kale.ID.String(), 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalItems)
	assert.Zero(t, view.TotalPrice)

	stored, _ := repo.GetCart(ctx, owner)
	assert.Nil(t, stored)
}

func TestCartSetQuantity(t *testing.T) {
	kale := product("Kale", 3.00, 10, nil)
	svc, _ := newTestCart(kale)
	owner := repository.CartOwner{ID: "u1"}
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, owner, kale.ID.String(), 2)
	assert.Error(t, err, "item not yet in cart")

	_, err = svc.AddItem(ctx, owner, kale.ID.String(), 1)
	require.NoError(t, err)
	view, err := svc.SetQuantity(ctx, owner, kale.ID.String(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalItems)

	_, err = svc.SetQuantity(ctx, owner, kale.ID.String(), 11)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
}

func TestCartMergeGuestSumsAndDeletesGuestCart(t *testing.T) {
	apples := product("Apples", 2.00, 100, nil)
	pears := product("Pears", 3.00, 4, nil)
	svc, repo := newTestCart(apples, pears)
	ctx := context.Background()
	guest := repository.CartOwner{ID: "g-42", Guest: true}
	user := repository.CartOwner{ID: "u-7"}

	_, err := svc.AddItem(ctx, user, apples.ID.String(), 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, apples.ID.String(), 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, pears.ID.String(), 3)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user, pears.ID.String(), 3)
	require.NoError(t, err)

	view, err := svc.MergeGuest(ctx, guest.ID, user.ID)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, apples.ID.String(), view.Items[0].ProductID)
	assert.Equal(t, 3, view.Items[0].Quantity)
	// capped at stock
	assert.Equal(t, 4, view.Items[1].Quantity)

	stored, _ := repo.GetCart(ctx, guest)
	assert.Nil(t, stored)
}

func TestCartMergeItemsDropsUnknownProducts(t *testing.T) {
	apples := product("Apples", 2.00, 100, nil)
	svc, _ := newTestCart(apples)

	view, err := svc.MergeItems(context.Background(), "u-1", []models.CartItem{
		{ProductID: apples.ID.String(), Quantity: 2},
		{ProductID: "gone", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 4.00, view.TotalPrice)
}

func TestCartQuote(t *testing.T) {
	apples := product("Apples", 2.00, 3, nil)
	svc, _ := newTestCart(apples)
	ctx := context.Background()

	_, _, err := svc.Quote(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)

	_, _, err = svc.Quote(ctx, []models.CartItem{{ProductID: apples.ID.String(), Quantity: 4}})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	view, products, err := svc.Quote(ctx, []models.CartItem{
		{ProductID: apples.ID.String(), Quantity: 1},
		{ProductID: apples.ID.String(), Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 6.00, view.TotalPrice)
	assert.Contains(t, products, apples.ID.String())
}
