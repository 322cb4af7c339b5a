package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"organic-hub/models"
)

// CartOwner identifies a cart: an authenticated user or a guest token.
type CartOwner struct {
	ID    string
	Guest bool
}

func (o CartOwner) key() string {
	if o.Guest {
		return fmt.Sprintf("cart:guest:%s", o.ID)
	}
	return fmt.Sprintf("cart:user:%s", o.ID)
}

type CartRepository interface {
	// GetCart returns nil, nil when the owner has no cart.
	GetCart(ctx context.Context, owner CartOwner) (*models.Cart, error)
	SaveCart(ctx context.Context, owner CartOwner, cart *models.Cart) error
	DeleteCart(ctx context.Context, owner CartOwner) error
	GetIdempotency(ctx context.Context, key string) (string, error)
	SetIdempotency(ctx context.Context, key, orderID string, ttl time.Duration) error
}

type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) CartRepository {
	return &RedisCartRepository{client: client, ttl: ttl}
}

func (r *RedisCartRepository) GetCart(ctx context.Context, owner CartOwner) (*models.Cart, error) {
	data, err := r.client.Get(ctx, owner.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", owner.key(), err)
	}
	return &cart, nil
}

// SaveCart stores the cart and refreshes its TTL. An empty cart is deleted.
func (r *RedisCartRepository) SaveCart(ctx context.Context, owner CartOwner, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return r.DeleteCart(ctx, owner)
	}
	cart.OwnerID = owner.ID
	cart.Guest = owner.Guest
	cart.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, owner.key(), data, r.ttl).Err()
}

func (r *RedisCartRepository) DeleteCart(ctx context.Context, owner CartOwner) error {
	return r.client.Del(ctx, owner.key()).Err()
}

func idemKey(key string) string {
	return "idem:checkout:" + key
}

func (r *RedisCartRepository) GetIdempotency(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *RedisCartRepository) SetIdempotency(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return r.client.Set(ctx, idemKey(key), orderID, ttl).Err()
}
