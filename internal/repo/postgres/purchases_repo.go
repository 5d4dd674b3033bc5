package postgres

import (
	"context"

	"github.com/geocoder89/coursehub/internal/domain/purchase"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
	"github.com/jackc/pgx/v5/pgxpool"
)

const purchasesUniq = "purchases_user_course_uniq"

type PurchasesRepo struct {
	metered
	pool *pgxpool.Pool
}

func NewPurchasesRepo(pool *pgxpool.Pool, prom *observability.Prom) *PurchasesRepo {
	return &PurchasesRepo{
		metered: metered{prom: prom},
		pool:    pool,
	}
}

// Create inserts p with no existence pre-check; two concurrent buys of the
// same course race on purchases_user_course_uniq and exactly one wins.
func (r *PurchasesRepo) Create(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	err := r.observe("purchases.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO purchases (id, user_id, course_id, created_at) VALUES ($1,$2,$3,$4)`,
			p.ID, p.UserID, p.CourseID, p.CreatedAt,
		)
		return err
	})

	if err != nil {
		if violates(err, purchasesUniq) {
			return purchase.Purchase{}, purchase.ErrAlreadyPurchased
		}
		return purchase.Purchase{}, err
	}

	return p, nil
}

func (r *PurchasesRepo) ListByUser(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	out := make([]purchase.Purchase, 0)

	if !utils.IsUUID(userID) {
		return out, nil
	}

	err := r.observe("purchases.list_by_user", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, user_id, course_id, created_at
			FROM purchases
			WHERE user_id = $1
			ORDER BY created_at ASC, id ASC`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p purchase.Purchase
			if err := rows.Scan(&p.ID, &p.UserID, &p.CourseID, &p.CreatedAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
