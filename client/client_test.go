package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"organic-hub/models"
	"organic-hub/pkg/localstore"
	"organic-hub/pricing"
)

var (
	honey = models.Product{
		ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Name:         "Raw Honey",
		Price:        10,
		Stock:        20,
		Unit:         "jar",
		BulkDiscount: &pricing.Tier{MinQty: 3, DiscountPercent: 10},
	}
	apples = models.Product{
		ID:    uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Name:  "Gala Apples",
		Price: 1.5,
		Stock: 4,
		Unit:  "kg",
	}
	shopper = models.User{
		ID:    uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  models.RoleUser,
	}
)

func newTestClient(t *testing.T, baseURL string) (*Client, *localstore.Store) {
	t.Helper()
	store := localstore.Memory()
	c := New(Config{
		BaseURL:               baseURL,
		Timeout:               2 * time.Second,
		FreeShippingThreshold: 50,
		ShippingFee:           5.99,
	}, store, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return c, store
}

// unreachableURL points at a server that has already been shut down.
func unreachableURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u + "/api"
}

func signIn(t *testing.T, store *localstore.Store, token string) {
	t.Helper()
	require.NoError(t, store.Set(localstore.KeyToken, token))
	require.NoError(t, store.Set(localstore.KeyUser, shopper))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerTokenAndUnauthorized(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	fired := 0
	c.cfg.OnUnauthorized = func() { fired++ }
	signIn(t, store, "server-token")

	_, err := c.Cart(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Bearer server-token", gotAuth)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Contains(t, err.Error(), "Invalid or expired token")
	assert.False(t, IsNetworkError(err))

	assert.Equal(t, 1, fired)
	assert.Empty(t, store.GetString(localstore.KeyToken))
	ok, _ := store.Get(localstore.KeyUser, &models.User{})
	assert.False(t, ok)
	assert.False(t, c.IsAuthenticated())
}

func TestDemoSessionNeverSendsToken(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authorization header required"})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	fired := 0
	c.cfg.OnUnauthorized = func() { fired++ }
	demo := EncodeDemoToken(DemoClaims{UserID: shopper.ID.String(), Email: shopper.Email, Role: models.RoleUser})
	signIn(t, store, demo)
	ctx := context.Background()

	_, err := c.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = c.CancelOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = c.Pay(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, gotAuth)

	_, err = c.Products(ctx, ProductQuery{})
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, []string{""}, gotAuth)
	assert.Zero(t, fired)
	assert.Equal(t, demo, store.GetString(localstore.KeyToken))
	assert.True(t, c.IsAuthenticated())
}

func TestRegisterAndLoginFallBackToLocalUsers(t *testing.T) {
	c, store := newTestClient(t, unreachableURL())
	ctx := context.Background()

	s, err := c.Register(ctx, RegisterInput{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, s.Local)
	assert.Equal(t, "ada@example.com", s.User.Email)
	assert.True(t, IsDemoToken(s.Tokens.AccessToken))

	claims, err := DecodeDemoToken(store.GetString(localstore.KeyToken))
	require.NoError(t, err)
	assert.Equal(t, s.User.ID.String(), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	var users []LocalUser
	_, err = store.Get(localstore.KeyUsers, &users)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "secret1", users[0].Password)

	_, err = c.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	require.NoError(t, c.Logout())
	assert.False(t, c.IsAuthenticated())

	_, err = c.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, err = c.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, s.Local)
	assert.True(t, c.IsAuthenticated())
}

func TestLoginRejectedByAPIDoesNotFallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	require.NoError(t, store.Set(localstore.KeyUsers, []LocalUser{{ID: uuid.New(), Email: "ada@example.com", Password: "secret1"}}))

	_, err := c.Login(context.Background(), "ada@example.com", "secret1")
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.False(t, c.IsAuthenticated())
}

func TestLoginStoresServerSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"user":   shopper,
			"tokens": map[string]string{"access_token": "jwt-access", "refresh_token": "jwt-refresh"},
		})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	s, err := c.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, s.Local)
	assert.Equal(t, "jwt-access", store.GetString(localstore.KeyToken))

	u, ok := c.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, shopper.ID, u.ID)
}

func TestGuestCartTotals(t *testing.T) {
	c, _ := newTestClient(t, unreachableURL())
	ctx := context.Background()

	view, err := c.AddToCart(ctx, honey, 3)
	require.NoError(t, err)
	assert.True(t, view.Guest)
	assert.Equal(t, 30.0, view.Subtotal)
	assert.Equal(t, 3.0, view.TotalSavings)
	assert.Equal(t, 27.0, view.TotalPrice)
	assert.Contains(t, view.BulkDiscounts, honey.ID.String())

	view, err = c.AddToCart(ctx, apples, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, view.TotalItems)
	assert.Equal(t, 30.0, view.TotalPrice)

	_, err = c.AddToCart(ctx, apples, 3)
	assert.ErrorIs(t, err, ErrOutOfStock)

	view, err = c.UpdateQuantity(ctx, honey.ID.String(), 2)
	require.NoError(t, err)
	assert.Empty(t, view.BulkDiscounts)
	assert.Equal(t, 23.0, view.TotalPrice)

	_, err = c.RemoveFromCart(ctx, honey.ID.String())
	require.NoError(t, err)
	view, err = c.UpdateQuantity(ctx, apples.ID.String(), 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0.0, view.TotalPrice)

	_, err = c.RemoveFromCart(ctx, apples.ID.String())
	assert.ErrorIs(t, err, ErrNotInCart)
}

func TestSyncCartMergesAndClearsGuestCart(t *testing.T) {
	var merged []models.CartItem
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cart/merge", r.URL.Path)
		var body struct {
			Items []models.CartItem `json:"items"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		merged = body.Items
		writeJSON(w, http.StatusOK, models.CartView{OwnerID: shopper.ID.String(), TotalItems: 5})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: honey, Quantity: 3}, {Product: apples, Quantity: 2}}))
	signIn(t, store, "server-token")

	view, err := c.SyncCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, view.TotalItems)
	assert.Equal(t, []models.CartItem{
		{ProductID: honey.ID.String(), Quantity: 3},
		{ProductID: apples.ID.String(), Quantity: 2},
	}, merged)

	ok, _ := store.Get(localstore.KeyCart, &[]GuestLine{})
	assert.False(t, ok)
}

func TestSyncCartKeepsGuestCartOnFailure(t *testing.T) {
	c, store := newTestClient(t, unreachableURL())
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: honey, Quantity: 1}}))
	signIn(t, store, "server-token")

	_, err := c.SyncCart(context.Background())
	assert.True(t, IsNetworkError(err))

	view, err := c.LocalCart()
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func checkoutInput(t *testing.T, c *Client) CheckoutInput {
	t.Helper()
	cart, err := c.LocalCart()
	require.NoError(t, err)
	return CheckoutInput{
		Cart: cart,
		ShippingAddress: models.Address{
			FullName: "Ada", Phone: "555-0100", Line1: "1 Orchard Way", City: "Portland", PostalCode: "97201",
		},
		PaymentMethod: models.PaymentCOD,
	}
}

func TestPlaceOrderOfflineStoresLocalOrder(t *testing.T) {
	c, store := newTestClient(t, unreachableURL())
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: honey, Quantity: 3}}))
	signIn(t, store, "server-token")
	ctx := context.Background()

	res, err := c.PlaceOrder(ctx, checkoutInput(t, c))
	require.NoError(t, err)
	assert.True(t, res.Offline)

	o := res.Order
	assert.Equal(t, models.SourceLocal, o.Source)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, shopper.ID, o.UserID)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "OH-20240601-"))
	assert.Equal(t, 27.0, o.Subtotal-o.Savings)
	assert.Equal(t, 5.99, o.ShippingFee)
	assert.Equal(t, pricing.Add(27, 5.99), o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, honey.ID, o.Items[0].ProductID)

	ok, _ := store.Get(localstore.KeyCart, &[]GuestLine{})
	assert.False(t, ok)

	list, err := c.ListOrders(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, list.Offline)
	require.Len(t, list.LocalOrders, 1)
	assert.Equal(t, o.ID, list.LocalOrders[0].ID)

	got, err := c.GetOrder(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestPlaceOrderOnlineSendsIdempotencyKey(t *testing.T) {
	orderID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cod", body["payment_method"])
		assert.Len(t, body["items"], 1)
		writeJSON(w, http.StatusCreated, map[string]any{
			"order":   models.Order{ID: orderID, Source: models.SourceAPI},
			"offline": false,
		})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: apples, Quantity: 1}}))
	signIn(t, store, "server-token")

	res, err := c.PlaceOrder(context.Background(), checkoutInput(t, c))
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Equal(t, orderID, res.Order.ID)

	local, err := c.LocalOrders()
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestPlaceOrderFromServerCartOmitsItems(t *testing.T) {
	var calls []string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/cart":
			writeJSON(w, http.StatusOK, models.CartView{
				OwnerID: shopper.ID.String(),
				Items:   []models.CartLine{{ProductID: apples.ID.String(), Quantity: 2, UnitPrice: apples.Price}},
			})
		case "/api/orders":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusCreated, map[string]any{"order": models.Order{ID: uuid.New()}})
		}
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	signIn(t, store, "server-token")
	ctx := context.Background()

	cart, err := c.Cart(ctx)
	require.NoError(t, err)
	require.False(t, cart.Guest)
	in := checkoutInput(t, c)
	in.Cart = cart

	_, err = c.PlaceOrder(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /api/cart", "POST /api/orders"}, calls)
	assert.NotContains(t, body, "items")
	assert.Equal(t, "cod", body["payment_method"])
}

func TestPlaceOrderRejectionIsNotStoredLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "insufficient stock"})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: apples, Quantity: 1}}))
	signIn(t, store, "server-token")

	_, err := c.PlaceOrder(context.Background(), checkoutInput(t, c))
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	local, err := c.LocalOrders()
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestPlaceOrderRequiresItemsAndUser(t *testing.T) {
	c, store := newTestClient(t, unreachableURL())

	_, err := c.PlaceOrder(context.Background(), CheckoutInput{Cart: &models.CartView{}})
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: apples, Quantity: 1}}))
	_, err = c.PlaceOrder(context.Background(), checkoutInput(t, c))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLocalOrderPayAndCancel(t *testing.T) {
	c, store := newTestClient(t, unreachableURL())
	require.NoError(t, store.Set(localstore.KeyCart, []GuestLine{{Product: honey, Quantity: 6}}))
	signIn(t, store, "server-token")
	ctx := context.Background()

	res, err := c.PlaceOrder(ctx, checkoutInput(t, c))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Order.ShippingFee)

	paid, err := c.Pay(ctx, res.Order.ID.String())
	require.NoError(t, err)
	assert.True(t, paid.Completed)
	assert.Equal(t, models.PaymentPaid, paid.Order.PaymentStatus)
	assert.Equal(t, pricing.MinorUnits(res.Order.Total), paid.Intent.Amount)

	cancelled, err := c.CancelOrder(ctx, res.Order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = c.CancelOrder(ctx, res.Order.ID.String())
	assert.Equal(t, http.StatusConflict, StatusOf(err))
}

func TestPayDemoIntentIsVerified(t *testing.T) {
	orderID := uuid.New()
	var verified map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payments":
			writeJSON(w, http.StatusCreated, PaymentIntent{PaymentID: "demo_pay_abc", Provider: "demo", Demo: true, Amount: 2700})
		case "/api/payments/verify":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&verified))
			writeJSON(w, http.StatusOK, map[string]any{"order": models.Order{ID: orderID, PaymentStatus: models.PaymentPaid}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	signIn(t, store, "server-token")

	res, err := c.Pay(context.Background(), orderID.String())
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, models.PaymentPaid, res.Order.PaymentStatus)
	assert.Equal(t, map[string]string{"order_id": orderID.String(), "payment_id": "demo_pay_abc"}, verified)
}

func TestPayStripeIntentNeedsConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, PaymentIntent{PaymentID: "pi_123", ClientSecret: "pi_123_secret", Provider: "stripe"})
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL+"/api")
	signIn(t, store, "server-token")

	res, err := c.Pay(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Nil(t, res.Order)
	assert.Equal(t, "pi_123_secret", res.Intent.ClientSecret)
}

func TestWishlistLocalFallback(t *testing.T) {
	c, _ := newTestClient(t, unreachableURL())
	ctx := context.Background()

	_, err := c.Wishlist(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, c.AddToWishlist(ctx, honey))
	require.NoError(t, c.AddToWishlist(ctx, honey))
	require.NoError(t, c.AddToWishlist(ctx, apples))

	items, err := c.Wishlist(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	view, err := c.MoveToCart(ctx, apples)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)

	items, err = c.Wishlist(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, honey.ID, items[0].Product.ID)
}

func TestProductsQueryString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "fruit", q.Get("category"))
		assert.Equal(t, "2.5", q.Get("minPrice"))
		assert.Equal(t, "true", q.Get("inStock"))
		assert.Empty(t, q.Get("featured"))
		writeJSON(w, http.StatusOK, ProductPage{Products: []models.Product{apples}, Meta: Meta{Page: 1, Limit: 10, Total: 1, TotalPages: 1}})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL+"/api")
	minPrice := 2.5
	page, err := c.Products(context.Background(), ProductQuery{Category: "fruit", MinPrice: &minPrice, InStock: true})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(1), page.Meta.Total)
}

func TestCatalogErrorsSurface(t *testing.T) {
	c, _ := newTestClient(t, unreachableURL())
	_, err := c.Product(context.Background(), honey.ID.String())
	assert.True(t, IsNetworkError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Categories(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsNetworkError(err))
}
