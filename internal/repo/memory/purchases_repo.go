package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/coursehub/internal/domain/purchase"
)

// PurchasesRepo keys records on (userID, courseID); the check and insert
// happen under one lock, which gives the same guarantee as the unique
// constraint in postgres.
type PurchasesRepo struct {
	mu    sync.Mutex
	items map[pairKey]purchase.Purchase
}

type pairKey struct {
	userID   string
	courseID string
}

func NewPurchasesRepo() *PurchasesRepo {
	return &PurchasesRepo{
		items: make(map[pairKey]purchase.Purchase),
	}
}

func (r *PurchasesRepo) Create(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	k := pairKey{userID: p.UserID, courseID: p.CourseID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[k]; exists {
		return purchase.Purchase{}, purchase.ErrAlreadyPurchased
	}

	r.items[k] = p
	return p, nil
}

// ListByUser returns the user's purchases, oldest first.
func (r *PurchasesRepo) ListByUser(_ context.Context, userID string) ([]purchase.Purchase, error) {
	r.mu.Lock()
	out := make([]purchase.Purchase, 0)
	for k, p := range r.items {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
