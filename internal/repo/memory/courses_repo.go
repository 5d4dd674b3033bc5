package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/coursehub/internal/domain/course"
)

type CoursesRepo struct {
	mu    sync.RWMutex
	items map[string]course.Course
}

func NewCoursesRepo() *CoursesRepo {
	return &CoursesRepo{
		items: make(map[string]course.Course),
	}
}

func (r *CoursesRepo) Create(_ context.Context, c course.Course) (course.Course, error) {
	r.mu.Lock()
	r.items[c.ID] = c
	r.mu.Unlock()

	return c.WithDiscount(), nil
}

// List returns every course, oldest first.
func (r *CoursesRepo) List(_ context.Context) ([]course.Course, error) {
	r.mu.RLock()
	out := make([]course.Course, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c.WithDiscount())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *CoursesRepo) GetByID(_ context.Context, id string) (course.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}

	return c.WithDiscount(), nil
}

// GetOwned answers ErrNotFound for both a missing course and one created by
// another admin.
func (r *CoursesRepo) GetOwned(_ context.Context, id, creatorID string) (course.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]
	if !ok || c.CreatorID != creatorID {
		return course.Course{}, course.ErrNotFound
	}

	return c.WithDiscount(), nil
}

// Update replaces the stored course when c.ID is owned by c.CreatorID.
func (r *CoursesRepo) Update(_ context.Context, c course.Course) (course.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[c.ID]
	if !ok || current.CreatorID != c.CreatorID {
		return course.Course{}, course.ErrNotFound
	}

	c.CreatedAt = current.CreatedAt
	r.items[c.ID] = c

	return c.WithDiscount(), nil
}

func (r *CoursesRepo) DeleteOwned(_ context.Context, id, creatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok || c.CreatorID != creatorID {
		return course.ErrNotFound
	}

	delete(r.items, id)
	return nil
}

// ListByIDs returns the courses that still exist, in the order of ids.
func (r *CoursesRepo) ListByIDs(_ context.Context, ids []string) ([]course.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.items[id]; ok {
			out = append(out, c.WithDiscount())
		}
	}

	return out, nil
}
