package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

type PostgresRepository struct {
	tm *postgres.TxManager
}

const selectProduct = `SELECT id, store_id, name, sku, price, sale_price, stock, active FROM products`

func NewPostgresRepository(tm *postgres.TxManager) *PostgresRepository {
	return &PostgresRepository{tm: tm}
}

func (r *PostgresRepository) GetByID(ctx context.Context, storeID, id int64) (Product, error) {
	row := r.tm.Executor(ctx).QueryRowContext(ctx, selectProduct+` WHERE store_id = $1 AND id = $2`, storeID, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, storeID int64, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.tm.Executor(ctx).QueryContext(ctx,
		selectProduct+` WHERE store_id = $1 AND active AND id = ANY($2::bigint[])`, storeID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// DecrementStock relies on the conditional UPDATE taking the row lock, which is
// held until the surrounding transaction ends.
func (r *PostgresRepository) DecrementStock(ctx context.Context, id int64, qty int) (int, bool, error) {
	db := r.tm.Executor(ctx)
	var remaining int
	err := db.QueryRowContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1 RETURNING stock`,
		qty, id).Scan(&remaining)
	if err == nil {
		return remaining + qty, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	var available int
	if err := db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, err
	}
	return available, false, nil
}

func (r *PostgresRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	res, err := r.tm.Executor(ctx).ExecContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2`, qty, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (Product, error) {
	var p Product
	var sale decimal.NullDecimal
	if err := s.Scan(&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Price, &sale, &p.Stock, &p.Active); err != nil {
		return Product{}, err
	}
	if sale.Valid {
		v := sale.Decimal
		p.SalePrice = &v
	}
	return p, nil
}
