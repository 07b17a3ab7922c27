package coupon

import (
	"context"
	"database/sql"
	"errors"

	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

type PostgresRepository struct {
	tm *postgres.TxManager
}

func NewPostgresRepository(tm *postgres.TxManager) *PostgresRepository {
	return &PostgresRepository{tm: tm}
}

func (r *PostgresRepository) FindByCode(ctx context.Context, storeID int64, code string) (Coupon, error) {
	var c Coupon
	var limit sql.NullInt64
	var starts, expires sql.NullTime
	err := r.tm.Executor(ctx).QueryRowContext(ctx, `SELECT id, store_id, code, kind, value, min_subtotal, usage_limit, used_count, starts_at, expires_at, active
		FROM coupons WHERE store_id = $1 AND lower(code) = lower($2)`, storeID, code).
		Scan(&c.ID, &c.StoreID, &c.Code, &c.Kind, &c.Value, &c.MinSubtotal, &limit, &c.UsedCount, &starts, &expires, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, err
	}
	if limit.Valid {
		n := int(limit.Int64)
		c.UsageLimit = &n
	}
	if starts.Valid {
		c.StartsAt = &starts.Time
	}
	if expires.Valid {
		c.ExpiresAt = &expires.Time
	}
	return c, nil
}

func (r *PostgresRepository) IncrementUsage(ctx context.Context, storeID int64, code string) error {
	res, err := r.tm.Executor(ctx).ExecContext(ctx, `UPDATE coupons SET used_count = used_count + 1
		WHERE store_id = $1 AND lower(code) = lower($2) AND (usage_limit IS NULL OR used_count < usage_limit)`, storeID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUsageExhausted
	}
	return nil
}

func (r *PostgresRepository) ReleaseUsage(ctx context.Context, storeID int64, code string) error {
	_, err := r.tm.Executor(ctx).ExecContext(ctx, `UPDATE coupons SET used_count = used_count - 1
		WHERE store_id = $1 AND lower(code) = lower($2) AND used_count > 0`, storeID, code)
	return err
}
