package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "organic-hub/common/errors"
	"organic-hub/models"
	"organic-hub/pkg/localstore"
	"organic-hub/repository"
)

func TestDashboardStats(t *testing.T) {
	orders := new(MockOrderRepository)
	products := new(MockProductRepository)
	users := new(MockUserRepository)
	fallback := repository.NewFallbackOrderStore(localstore.Memory())
	require.NoError(t, fallback.Append(localOrder()))
	svc := NewDashboardService(orders, products, users, fallback, 5, testLogger)

	orders.On("Stats", mock.Anything).Return(&models.OrderStats{
		TotalOrders:    7,
		Revenue:        310.45,
		OrdersByStatus: map[models.OrderStatus]int64{models.StatusPending: 4, models.StatusCancelled: 3},
	}, nil)
	orders.On("Recent", mock.Anything, 10).Return(nil, nil)
	products.On("Count", mock.Anything).Return(int64(42), nil)
	products.On("LowStock", mock.Anything, 5, 10).Return([]models.Product{product("Figs", 6, 2, nil)}, nil)
	users.On("Count", mock.Anything).Return(int64(12), nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.TotalOrders)
	assert.Equal(t, 310.45, stats.Revenue)
	assert.Equal(t, int64(42), stats.TotalProducts)
	assert.Equal(t, int64(12), stats.TotalUsers)
	assert.Len(t, stats.LowStock, 1)
	assert.NotNil(t, stats.RecentOrders)
	assert.Equal(t, 1, stats.PendingSync)
}

func TestDashboardStatsDatabaseDown(t *testing.T) {
	orders := new(MockOrderRepository)
	products := new(MockProductRepository)
	users := new(MockUserRepository)
	svc := NewDashboardService(orders, products, users, nil, 5, testLogger)

	orders.On("Stats", mock.Anything).Return(nil, errDBDown)
	orders.On("Recent", mock.Anything, 10).Return(nil, errDBDown)
	products.On("Count", mock.Anything).Return(int64(0), errDBDown)
	products.On("LowStock", mock.Anything, 5, 10).Return(nil, errDBDown)
	users.On("Count", mock.Anything).Return(int64(0), errDBDown)

	_, err := svc.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, 503, apperrors.As(err).Code)
}
