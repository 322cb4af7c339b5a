package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "organic-hub/common/errors"
	"organic-hub/events"
	"organic-hub/models"
	awspkg "organic-hub/pkg/aws"
	"organic-hub/pricing"
	"organic-hub/repository"
)

type CheckoutRequest struct {
	// Items is optional; when empty the caller's cart is checked out.
	Items           []models.CartItem    `json:"items"`
	ShippingAddress models.Address       `json:"shipping_address" binding:"required"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required,oneof=cod online"`
	Notes           string               `json:"notes"`
}

// Buyer is the authenticated caller placing an order.
type Buyer struct {
	UserID string
	Email  string
}

type CheckoutResult struct {
	Order *models.Order `json:"order"`
	// Offline is set when the order went to the local fallback store.
	Offline bool `json:"offline"`
}

type OrderPage struct {
	Orders []models.Order `json:"orders"`
	// LocalOrders are orders accepted while the database was down and not
	// yet replayed.
	LocalOrders []models.Order `json:"local_orders,omitempty"`
	Meta        MetaData       `json:"meta"`
}

type OrderConfig struct {
	FreeShippingThreshold float64
	ShippingFee           float64
	IdempotencyTTL        time.Duration
}

type OrderService interface {
	Checkout(ctx context.Context, buyer Buyer, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error)
	ListMine(ctx context.Context, userID string, page, limit int) (*OrderPage, error)
	GetMine(ctx context.Context, userID, orderID string) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID string) (*models.Order, error)

	List(ctx context.Context, status string, page, limit int) (*OrderPage, error)
	Get(ctx context.Context, orderID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error)

	AttachPayment(ctx context.Context, orderID, paymentID string) error
	MarkPaid(ctx context.Context, orderID, paymentID string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, orderID, paymentID, reason string) error
}

type orderServiceImpl struct {
	orders    repository.OrderRepository
	users     repository.UserRepository
	carts     repository.CartRepository
	cart      CartService
	cache     ProductCache
	fallback  *repository.FallbackOrderStore
	publisher events.Publisher
	metrics   Metrics
	cfg       OrderConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	carts repository.CartRepository,
	cart CartService,
	cache ProductCache,
	fallback *repository.FallbackOrderStore,
	publisher events.Publisher,
	metrics Metrics,
	cfg OrderConfig,
	logger *zap.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cache == nil {
		cache = NopCache{}
	}
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &orderServiceImpl{
		orders:    orders,
		users:     users,
		carts:     carts,
		cart:      cart,
		cache:     cache,
		fallback:  fallback,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// shippingFee is zero at or above the threshold. A zero threshold disables
// free shipping.
func (c OrderConfig) shippingFee(subtotal float64) float64 {
	return pricing.ShippingFee(subtotal, c.FreeShippingThreshold, c.ShippingFee)
}

func (s *orderServiceImpl) Checkout(ctx context.Context, buyer Buyer, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error) {
	userID, err := uuid.Parse(buyer.UserID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid user id")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentCOD
	}

	if idempotencyKey != "" {
		if res, ok := s.replayed(ctx, userID, idempotencyKey); ok {
			return res, nil
		}
	}

	fromCart := len(req.Items) == 0
	items := req.Items
	if fromCart {
		cart, err := s.carts.GetCart(ctx, repository.CartOwner{ID: buyer.UserID})
		if err != nil {
			return nil, apperrors.Internal("failed to load cart", err)
		}
		if cart == nil || len(cart.Items) == 0 {
			return nil, apperrors.ErrEmptyCart
		}
		items = cart.Items
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperrors.ErrInvalidQuantity
		}
	}

	view, products, err := s.cart.Quote(ctx, items)
	if repository.IsUnreachable(err) {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if err != nil {
		return nil, apperrors.As(err)
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Customer:        s.customer(ctx, userID, buyer),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Status:          models.StatusPending,
		Subtotal:        view.Subtotal,
		Savings:         view.TotalSavings,
		Source:          models.SourceAPI,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       s.now().UTC(),
	}
	order.OrderNumber = models.OrderNumber(order.ID, order.CreatedAt)
	order.ShippingFee = s.cfg.shippingFee(view.TotalPrice)
	order.Total = decimal.NewFromFloat(view.TotalPrice).Add(decimal.NewFromFloat(order.ShippingFee)).Round(2).InexactFloat64()
	order.UpdatedAt = order.CreatedAt
	for _, line := range view.Items {
		pid, _ := uuid.Parse(line.ProductID)
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: pid,
			Name:      products[line.ProductID].Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Discount:  line.Discount,
			Total:     line.Total,
		})
	}

	res := &CheckoutResult{Order: order}
	switch err := s.orders.Place(ctx, order); {
	case err == nil:
		invalidateStock(ctx, s.cache, order)
	case err == repository.ErrInsufficientStock:
		return nil, apperrors.ErrInsufficientStock
	case repository.IsUnreachable(err):
		if ferr := s.storeOffline(order, err); ferr != nil {
			return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, ferr)
		}
		res.Offline = true
	default:
		return nil, apperrors.Internal("failed to place order", err)
	}

	if fromCart {
		if err := s.carts.DeleteCart(ctx, repository.CartOwner{ID: buyer.UserID}); err != nil {
			s.logger.Warn("cart not cleared after checkout", zap.String("user_id", buyer.UserID), zap.Error(err))
		}
		count(s.metrics, awspkg.MetricCartCheckouts, nil)
	} else {
		s.removeCheckedOut(ctx, buyer.UserID, items)
	}
	if idempotencyKey != "" {
		if err := s.carts.SetIdempotency(ctx, idemScope(userID, idempotencyKey), order.ID.String(), s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("idempotency key not stored", zap.Error(err))
		}
	}
	if len(view.BulkDiscounts) > 0 {
		count(s.metrics, awspkg.MetricBulkDiscountLines, nil)
	}
	if !res.Offline {
		count(s.metrics, awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(order.PaymentMethod)})
	}
	s.publish(ctx, models.EventOrderCreated, order)

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", buyer.UserID),
		zap.Float64("total", order.Total),
		zap.Bool("offline", res.Offline),
	)
	return res, nil
}

// removeCheckedOut takes the checked out quantities off the buyer's stored
// cart. Lines that reach zero are dropped.
func (s *orderServiceImpl) removeCheckedOut(ctx context.Context, userID string, items []models.CartItem) {
	owner := repository.CartOwner{ID: userID}
	cart, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		s.logger.Warn("cart not updated after checkout", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if cart == nil {
		return
	}

	bought := make(map[string]int, len(items))
	for _, it := range items {
		bought[it.ProductID] += it.Quantity
	}
	kept := make([]models.CartItem, 0, len(cart.Items))
	changed := false
	for _, it := range cart.Items {
		if n := bought[it.ProductID]; n > 0 {
			it.Quantity -= n
			changed = true
		}
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	if !changed {
		return
	}
	cart.Items = kept
	if err := s.carts.SaveCart(ctx, owner, cart); err != nil {
		s.logger.Warn("cart not updated after checkout", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *orderServiceImpl) storeOffline(order *models.Order, cause error) error {
	if s.fallback == nil {
		return cause
	}
	order.Source = models.SourceLocal
	if err := s.fallback.Append(*order); err != nil {
		return err
	}
	count(s.metrics, awspkg.MetricOrdersOffline, nil)
	s.logger.Warn("database unreachable, order stored locally",
		zap.String("order_id", order.ID.String()),
		zap.Error(cause),
	)
	return nil
}

func (s *orderServiceImpl) replayed(ctx context.Context, userID uuid.UUID, key string) (*CheckoutResult, bool) {
	id, err := s.carts.GetIdempotency(ctx, idemScope(userID, key))
	if err != nil || id == "" {
		return nil, false
	}
	order, err := s.find(ctx, id)
	if err != nil || order.UserID != userID {
		return nil, false
	}
	return &CheckoutResult{Order: order, Offline: order.Source == models.SourceLocal}, true
}

func idemScope(userID uuid.UUID, key string) string {
	return userID.String() + ":" + key
}

func (s *orderServiceImpl) customer(ctx context.Context, userID uuid.UUID, buyer Buyer) models.Customer {
	c := models.Customer{Email: buyer.Email}
	if s.users == nil {
		return c
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return c
	}
	return models.Customer{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// find looks in Postgres first and then in the local fallback store.
func (s *orderServiceImpl) find(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid order id")
	}
	order, dbErr := s.orders.FindByID(ctx, id)
	if dbErr == nil {
		return order, nil
	}
	if dbErr != repository.ErrNotFound && !repository.IsUnreachable(dbErr) {
		return nil, apperrors.Internal("failed to load order", dbErr)
	}
	if s.fallback != nil {
		if local, ok, err := s.fallback.Find(id); err == nil && ok {
			return local, nil
		}
	}
	if repository.IsUnreachable(dbErr) {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, dbErr)
	}
	return nil, apperrors.ErrOrderNotFound
}

func (s *orderServiceImpl) ListMine(ctx context.Context, userID string, page, limit int) (*OrderPage, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid user id")
	}

	var local []models.Order
	if s.fallback != nil {
		if local, err = s.fallback.ByUser(uid); err != nil {
			s.logger.Warn("local orders unreadable", zap.Error(err))
		}
	}

	orders, total, err := s.orders.FindByUser(ctx, uid, page, limit)
	if repository.IsUnreachable(err) {
		s.logger.Warn("database unreachable, listing local orders only", zap.String("user_id", userID), zap.Error(err))
		return &OrderPage{Orders: []models.Order{}, LocalOrders: local, Meta: newMeta(page, limit, 0)}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{Orders: orders, LocalOrders: local, Meta: newMeta(page, limit, total)}, nil
}

func (s *orderServiceImpl) GetMine(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID.String() != userID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderServiceImpl) Cancel(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.GetMine(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, fmt.Errorf("cannot cancel a %s order", order.Status))
	}
	return s.cancel(ctx, order)
}

func (s *orderServiceImpl) cancel(ctx context.Context, order *models.Order) (*models.Order, error) {
	at := s.now().UTC()
	if order.Source == models.SourceLocal && s.fallback != nil {
		taken, err := s.fallback.Take(order.ID)
		if err != nil {
			return nil, apperrors.Internal("failed to cancel order", err)
		}
		if taken {
			// never reached Postgres, so no stock was taken
			order.Status = models.StatusCancelled
			order.CancelledAt = &at
			s.publish(ctx, models.EventOrderCancelled, order)
			return order, nil
		}
	}

	if err := s.orders.Cancel(ctx, order, at); err != nil {
		if err == repository.ErrNotCancellable {
			return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, err)
		}
		if repository.IsUnreachable(err) {
			return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil, apperrors.Internal("failed to cancel order", err)
	}
	order.Status = models.StatusCancelled
	order.CancelledAt = &at
	invalidateStock(ctx, s.cache, order)
	count(s.metrics, awspkg.MetricOrdersCancelled, nil)
	s.publish(ctx, models.EventOrderCancelled, order)
	s.logger.Info("order cancelled", zap.String("order_id", order.ID.String()))
	return order, nil
}

func (s *orderServiceImpl) List(ctx context.Context, status string, page, limit int) (*OrderPage, error) {
	st := models.OrderStatus(status)
	if status != "" && !st.Valid() {
		return nil, apperrors.BadRequest("unknown order status")
	}
	orders, total, err := s.orders.FindAll(ctx, st, page, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{Orders: orders, Meta: newMeta(page, limit, total)}, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.find(ctx, orderID)
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	next := models.OrderStatus(status)
	if !next.Valid() {
		return nil, apperrors.BadRequest("unknown order status")
	}
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Source == models.SourceLocal && s.fallback != nil {
		if _, ok, _ := s.fallback.Find(order.ID); ok && next != models.StatusCancelled {
			return nil, apperrors.Conflict("order has not been synced yet")
		}
	}
	if !models.CanTransition(order.Status, next) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidTransition, fmt.Errorf("%s to %s", order.Status, next))
	}
	if next == models.StatusCancelled {
		return s.cancel(ctx, order)
	}

	if err := s.orders.UpdateFields(ctx, order.ID, map[string]interface{}{"status": next}); err != nil {
		return nil, apperrors.Internal("failed to update order", err)
	}
	order.Status = next
	s.publish(ctx, models.EventOrderStatusChanged, order)
	s.logger.Info("order status changed", zap.String("order_id", order.ID.String()), zap.String("status", string(next)))
	return order, nil
}

func (s *orderServiceImpl) AttachPayment(ctx context.Context, orderID, paymentID string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return apperrors.BadRequest("invalid order id")
	}
	if err := s.orders.UpdateFields(ctx, id, map[string]interface{}{"payment_id": paymentID}); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.ErrOrderNotFound
		}
		return apperrors.Internal("failed to update order", err)
	}
	return nil
}

// MarkPaid records a successful payment. Repeated calls for an order that
// is already paid are no-ops.
func (s *orderServiceImpl) MarkPaid(ctx context.Context, orderID, paymentID string) (*models.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return order, nil
	}
	if order.Status == models.StatusCancelled {
		return nil, apperrors.Conflict("order is cancelled")
	}

	at := s.now().UTC()
	fields := map[string]interface{}{
		"payment_status": models.PaymentPaid,
		"payment_id":     paymentID,
		"paid_at":        at,
	}
	if order.Status == models.StatusPending {
		fields["status"] = models.StatusProcessing
	}
	if err := s.orders.UpdateFields(ctx, order.ID, fields); err != nil {
		return nil, apperrors.Internal("failed to update order", err)
	}

	order.PaymentStatus = models.PaymentPaid
	order.PaymentID = paymentID
	order.PaidAt = &at
	if order.Status == models.StatusPending {
		order.Status = models.StatusProcessing
	}
	count(s.metrics, awspkg.MetricPaymentSucceeded, nil)
	s.publish(ctx, models.EventPaymentSucceeded, order)
	return order, nil
}

func (s *orderServiceImpl) MarkPaymentFailed(ctx context.Context, orderID, paymentID, reason string) error {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return nil
	}
	fields := map[string]interface{}{"payment_status": models.PaymentFailed}
	if paymentID != "" {
		fields["payment_id"] = paymentID
	}
	if err := s.orders.UpdateFields(ctx, order.ID, fields); err != nil {
		return apperrors.Internal("failed to update order", err)
	}
	order.PaymentStatus = models.PaymentFailed
	count(s.metrics, awspkg.MetricPaymentFailed, nil)
	s.publish(ctx, models.EventPaymentFailed, order)
	s.logger.Warn("payment failed", zap.String("order_id", orderID), zap.String("reason", reason))
	return nil
}

func (s *orderServiceImpl) publish(ctx context.Context, eventType string, order *models.Order) {
	evt := models.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID.String(),
		UserID:     order.UserID.String(),
		Status:     order.Status,
		Total:      order.Total,
		Source:     order.Source,
		OccurredAt: s.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, eventType, evt.OrderID, evt); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", eventType), zap.String("order_id", evt.OrderID), zap.Error(err))
	}
}

// invalidateStock drops cached products whose stock an order changed.
func invalidateStock(ctx context.Context, cache ProductCache, order *models.Order) {
	for _, it := range order.Items {
		cache.Invalidate(ctx, it.ProductID.String())
	}
}
