package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/coursehub/internal/domain/principal"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalsRepo serves one principal kind; users and admins live in
// separate tables with the same shape.
type PrincipalsRepo struct {
	metered
	pool  *pgxpool.Pool
	kind  principal.Kind
	table string
	uniq  string
}

func NewPrincipalsRepo(pool *pgxpool.Pool, prom *observability.Prom, kind principal.Kind) *PrincipalsRepo {
	table := "users"
	if kind == principal.KindAdmin {
		table = "admins"
	}

	return &PrincipalsRepo{
		metered: metered{prom: prom},
		pool:    pool,
		kind:    kind,
		table:   table,
		uniq:    table + "_email_uniq",
	}
}

const principalColumns = `id, first_name, last_name, email, password_hash, created_at, updated_at`

func (r *PrincipalsRepo) scan(row pgx.Row) (principal.Principal, error) {
	var p principal.Principal

	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return principal.Principal{}, principal.ErrNotFound
		}
		return principal.Principal{}, err
	}

	p.Kind = r.kind
	return p, nil
}

func (r *PrincipalsRepo) Create(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	p.Kind = r.kind
	p.Email = principal.NormalizeEmail(p.Email)

	err := r.observe(r.table+".create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO `+r.table+` (`+principalColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.FirstName, p.LastName, p.Email, p.PasswordHash, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if violates(err, r.uniq) {
			return principal.Principal{}, principal.ErrEmailTaken
		}
		return principal.Principal{}, err
	}

	return p, nil
}

func (r *PrincipalsRepo) GetByEmail(ctx context.Context, email string) (principal.Principal, error) {
	var (
		p   principal.Principal
		err error
	)

	err = r.observe(r.table+".get_by_email", func() error {
		p, err = r.scan(r.pool.QueryRow(ctx,
			`SELECT `+principalColumns+` FROM `+r.table+` WHERE lower(email) = $1`,
			principal.NormalizeEmail(email),
		))
		return err
	})

	return p, err
}

func (r *PrincipalsRepo) GetByID(ctx context.Context, id string) (principal.Principal, error) {
	if !utils.IsUUID(id) {
		return principal.Principal{}, principal.ErrNotFound
	}

	var (
		p   principal.Principal
		err error
	)

	err = r.observe(r.table+".get_by_id", func() error {
		p, err = r.scan(r.pool.QueryRow(ctx,
			`SELECT `+principalColumns+` FROM `+r.table+` WHERE id = $1`, id,
		))
		return err
	})

	return p, err
}

func (r *PrincipalsRepo) UpdateProfile(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	if !utils.IsUUID(p.ID) {
		return principal.Principal{}, principal.ErrNotFound
	}

	var (
		out principal.Principal
		err error
	)

	err = r.observe(r.table+".update_profile", func() error {
		out, err = r.scan(r.pool.QueryRow(ctx,
			`UPDATE `+r.table+`
			SET first_name = $2,
			    last_name  = $3,
			    email      = $4,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+principalColumns,
			p.ID, p.FirstName, p.LastName, principal.NormalizeEmail(p.Email),
		))
		return err
	})

	if err != nil {
		if violates(err, r.uniq) {
			return principal.Principal{}, principal.ErrEmailTaken
		}
		return principal.Principal{}, err
	}

	return out, nil
}

func (r *PrincipalsRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if !utils.IsUUID(id) {
		return principal.ErrNotFound
	}

	var tag pgconn.CommandTag

	err := r.observe(r.table+".update_password", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE `+r.table+` SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, hash,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return principal.ErrNotFound
	}
	return nil
}
