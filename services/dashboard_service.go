package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/repository"
)

type DashboardStats struct {
	TotalOrders    int64                        `json:"total_orders"`
	Revenue        float64                      `json:"revenue"`
	OrdersByStatus map[models.OrderStatus]int64 `json:"orders_by_status"`
	TotalProducts  int64                        `json:"total_products"`
	TotalUsers     int64                        `json:"total_users"`
	LowStock       []models.Product             `json:"low_stock"`
	RecentOrders   []models.Order               `json:"recent_orders"`
	// PendingSync counts orders held in the local fallback store.
	PendingSync int `json:"pending_sync"`
}

type DashboardService interface {
	Stats(ctx context.Context) (*DashboardStats, error)
	Users(ctx context.Context, page, limit int) ([]models.User, MetaData, error)
}

type dashboardServiceImpl struct {
	orders            repository.OrderRepository
	products          repository.ProductRepository
	users             repository.UserRepository
	fallback          *repository.FallbackOrderStore
	lowStockThreshold int
	logger            *zap.Logger
}

func NewDashboardService(orders repository.OrderRepository, products repository.ProductRepository, users repository.UserRepository, fallback *repository.FallbackOrderStore, lowStockThreshold int, logger *zap.Logger) DashboardService {
	return &dashboardServiceImpl{
		orders:            orders,
		products:          products,
		users:             users,
		fallback:          fallback,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
	}
}

const dashboardListSize = 10

func (s *dashboardServiceImpl) Stats(ctx context.Context) (*DashboardStats, error) {
	out := &DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := s.orders.Stats(gctx)
		if err != nil {
			return err
		}
		out.TotalOrders, out.Revenue, out.OrdersByStatus = st.TotalOrders, st.Revenue, st.OrdersByStatus
		return nil
	})
	g.Go(func() (err error) {
		out.TotalProducts, err = s.products.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalUsers, err = s.users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.LowStock, err = s.products.LowStock(gctx, s.lowStockThreshold, dashboardListSize)
		return err
	})
	g.Go(func() (err error) {
		out.RecentOrders, err = s.orders.Recent(gctx, dashboardListSize)
		return err
	})
	if err := g.Wait(); err != nil {
		if repository.IsUnreachable(err) {
			return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil, apperrors.Internal("failed to load dashboard", err)
	}

	if out.LowStock == nil {
		out.LowStock = []models.Product{}
	}
	if out.RecentOrders == nil {
		out.RecentOrders = []models.Order{}
	}
	if s.fallback != nil {
		if pending, err := s.fallback.All(); err == nil {
			out.PendingSync = len(pending)
		} else {
			s.logger.Warn("local orders unreadable", zap.Error(err))
		}
	}
	return out, nil
}

func (s *dashboardServiceImpl) Users(ctx context.Context, page, limit int) ([]models.User, MetaData, error) {
	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, MetaData{}, apperrors.Internal("failed to list users", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, newMeta(page, limit, total), nil
}
