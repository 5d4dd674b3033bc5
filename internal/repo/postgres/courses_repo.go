package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CoursesRepo struct {
	metered
	pool *pgxpool.Pool
}

func NewCoursesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CoursesRepo {
	return &CoursesRepo{
		metered: metered{prom: prom},
		pool:    pool,
	}
}

const courseColumns = `id, title, description, price, image_remote_id, image_url, creator_id, created_at, updated_at`

func scanCourse(row pgx.Row) (course.Course, error) {
	var c course.Course

	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Price,
		&c.Image.RemoteID, &c.Image.URL, &c.CreatorID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, err
	}

	return c.WithDiscount(), nil
}

func (r *CoursesRepo) Create(ctx context.Context, c course.Course) (course.Course, error) {
	err := r.observe("courses.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO courses (`+courseColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			c.ID, c.Title, c.Description, c.Price,
			c.Image.RemoteID, c.Image.URL, c.CreatorID,
			c.CreatedAt, c.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return course.Course{}, err
	}

	return c.WithDiscount(), nil
}

func (r *CoursesRepo) List(ctx context.Context) ([]course.Course, error) {
	var out []course.Course

	err := r.observe("courses.list", func() error {
		var err error
		out, err = r.query(ctx,
			`SELECT `+courseColumns+` FROM courses ORDER BY created_at ASC, id ASC`,
		)
		return err
	})

	return out, err
}

func (r *CoursesRepo) GetByID(ctx context.Context, id string) (course.Course, error) {
	if !utils.IsUUID(id) {
		return course.Course{}, course.ErrNotFound
	}

	var (
		c   course.Course
		err error
	)

	err = r.observe("courses.get_by_id", func() error {
		c, err = scanCourse(r.pool.QueryRow(ctx,
			`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id,
		))
		return err
	})

	return c, err
}

// GetOwned answers ErrNotFound for both a missing course and one created by
// another admin.
func (r *CoursesRepo) GetOwned(ctx context.Context, id, creatorID string) (course.Course, error) {
	if !utils.IsUUID(id) || !utils.IsUUID(creatorID) {
		return course.Course{}, course.ErrNotFound
	}

	var (
		c   course.Course
		err error
	)

	err = r.observe("courses.get_owned", func() error {
		c, err = scanCourse(r.pool.QueryRow(ctx,
			`SELECT `+courseColumns+` FROM courses WHERE id = $1 AND creator_id = $2`,
			id, creatorID,
		))
		return err
	})

	return c, err
}

// Update writes c when c.ID is owned by c.CreatorID.
func (r *CoursesRepo) Update(ctx context.Context, c course.Course) (course.Course, error) {
	if !utils.IsUUID(c.ID) || !utils.IsUUID(c.CreatorID) {
		return course.Course{}, course.ErrNotFound
	}

	var (
		out course.Course
		err error
	)

	err = r.observe("courses.update", func() error {
		out, err = scanCourse(r.pool.QueryRow(ctx,
			`UPDATE courses
			SET title           = $3,
			    description     = $4,
			    price           = $5,
			    image_remote_id = $6,
			    image_url       = $7,
			    updated_at      = NOW()
			WHERE id = $1 AND creator_id = $2
			RETURNING `+courseColumns,
			c.ID, c.CreatorID, c.Title, c.Description, c.Price, c.Image.RemoteID, c.Image.URL,
		))
		return err
	})

	return out, err
}

func (r *CoursesRepo) DeleteOwned(ctx context.Context, id, creatorID string) error {
	if !utils.IsUUID(id) || !utils.IsUUID(creatorID) {
		return course.ErrNotFound
	}

	var tag pgconn.CommandTag

	err := r.observe("courses.delete_owned", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`DELETE FROM courses WHERE id = $1 AND creator_id = $2`, id, creatorID,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return course.ErrNotFound
	}
	return nil
}

// ListByIDs returns the courses that still exist, in the order of ids.
func (r *CoursesRepo) ListByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if utils.IsUUID(id) {
			valid = append(valid, id)
		}
	}

	if len(valid) == 0 {
		return []course.Course{}, nil
	}

	var out []course.Course

	err := r.observe("courses.list_by_ids", func() error {
		var err error
		out, err = r.query(ctx,
			`SELECT `+courseColumns+`
			FROM courses
			WHERE id = ANY($1::uuid[])
			ORDER BY array_position($1::uuid[], id)`,
			valid,
		)
		return err
	})

	return out, err
}

func (r *CoursesRepo) query(ctx context.Context, sql string, args ...any) ([]course.Course, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]course.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}
