package cache

import (
	"context"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/course"
)

// CourseRepository is the store Catalog sits in front of.
type CourseRepository interface {
	Create(ctx context.Context, c course.Course) (course.Course, error)
	List(ctx context.Context) ([]course.Course, error)
	GetByID(ctx context.Context, id string) (course.Course, error)
	GetOwned(ctx context.Context, id, creatorID string) (course.Course, error)
	Update(ctx context.Context, c course.Course) (course.Course, error)
	DeleteOwned(ctx context.Context, id, creatorID string) error
	ListByIDs(ctx context.Context, ids []string) ([]course.Course, error)
}

const listKey = "list"

// Catalog caches the public course reads for a short TTL. Writes through
// this instance invalidate at once; writes from other API instances show up
// after the TTL. Ownership lookups always hit the store.
type Catalog struct {
	next   CourseRepository
	list   *Cache[[]course.Course]
	single *Cache[course.Course]
}

func NewCatalog(next CourseRepository, ttl time.Duration) *Catalog {
	return &Catalog{
		next:   next,
		list:   New[[]course.Course](ttl),
		single: New[course.Course](ttl),
	}
}

func (c *Catalog) List(ctx context.Context) ([]course.Course, error) {
	if v, ok := c.list.Get(listKey); ok {
		return append([]course.Course(nil), v...), nil
	}

	v, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}

	c.list.Set(listKey, v)
	return append([]course.Course(nil), v...), nil
}

func (c *Catalog) GetByID(ctx context.Context, id string) (course.Course, error) {
	if v, ok := c.single.Get(id); ok {
		return v, nil
	}

	v, err := c.next.GetByID(ctx, id)
	if err != nil {
		return course.Course{}, err
	}

	c.single.Set(id, v)
	return v, nil
}

func (c *Catalog) GetOwned(ctx context.Context, id, creatorID string) (course.Course, error) {
	return c.next.GetOwned(ctx, id, creatorID)
}

func (c *Catalog) ListByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	return c.next.ListByIDs(ctx, ids)
}

func (c *Catalog) Create(ctx context.Context, in course.Course) (course.Course, error) {
	out, err := c.next.Create(ctx, in)
	if err == nil {
		c.list.Clear()
	}
	return out, err
}

func (c *Catalog) Update(ctx context.Context, in course.Course) (course.Course, error) {
	out, err := c.next.Update(ctx, in)
	c.invalidate(in.ID)
	return out, err
}

func (c *Catalog) DeleteOwned(ctx context.Context, id, creatorID string) error {
	err := c.next.DeleteOwned(ctx, id, creatorID)
	c.invalidate(id)
	return err
}

func (c *Catalog) invalidate(id string) {
	c.list.Clear()
	c.single.Delete(id)
}
