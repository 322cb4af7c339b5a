package repository

import (
	"sync"

	"github.com/google/uuid"

	"organic-hub/models"
	"organic-hub/pkg/localstore"
)

// FallbackOrderStore keeps orders that could not be written to Postgres in
// the local store's "orders" list until they are replayed.
type FallbackOrderStore struct {
	store *localstore.Store
	// held while an order is replayed or taken out
	mu sync.Mutex
}

func NewFallbackOrderStore(store *localstore.Store) *FallbackOrderStore {
	return &FallbackOrderStore{store: store}
}

// Append adds order to the end of the local orders list.
func (s *FallbackOrderStore) Append(order models.Order) error {
	_, err := localstore.Update(s.store, localstore.KeyOrders, func(cur []models.Order) ([]models.Order, error) {
		return append(cur, order), nil
	})
	return err
}

// All returns every locally stored order, oldest first.
func (s *FallbackOrderStore) All() ([]models.Order, error) {
	var orders []models.Order
	if _, err := s.store.Get(localstore.KeyOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ByUser returns the user's local orders, newest first.
func (s *FallbackOrderStore) ByUser(userID uuid.UUID) ([]models.Order, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == userID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Find returns the local order with id, if any.
func (s *FallbackOrderStore) Find(id uuid.UUID) (*models.Order, bool, error) {
	all, err := s.All()
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], true, nil
		}
	}
	return nil, false, nil
}

// Remove drops the given ids from the local list.
func (s *FallbackOrderStore) Remove(ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.remove(ids...)
	return err
}

// Take removes the order with id and reports whether it was still stored.
// It waits for a replay of the same order to finish, so an order is either
// taken or replayed, never both.
func (s *FallbackOrderStore) Take(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.remove(id)
	return n > 0, err
}

// Replay hands the stored order with id to place and removes it once place
// succeeds. It reports false without calling place when the order is gone.
func (s *FallbackOrderStore) Replay(id uuid.UUID, place func(*models.Order) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok, err := s.Find(id)
	if err != nil || !ok {
		return false, err
	}
	if err := place(order); err != nil {
		return false, err
	}
	_, err = s.remove(id)
	return true, err
}

func (s *FallbackOrderStore) remove(ids ...uuid.UUID) (int, error) {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	removed := 0
	_, err := localstore.Update(s.store, localstore.KeyOrders, func(cur []models.Order) ([]models.Order, error) {
		kept := make([]models.Order, 0, len(cur))
		for _, o := range cur {
			if drop[o.ID] {
				removed++
				continue
			}
			kept = append(kept, o)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
