package cart

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	getItemsQuery = `
        SELECT product_id, quantity, variants
        FROM cart_items
        WHERE store_id = $1 AND owner_key = $2
        ORDER BY product_id, id
    `
	upsertItemQuery = `
        INSERT INTO cart_items (store_id, owner_key, product_id, quantity, variants, variant_key)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (store_id, owner_key, product_id, variant_key)
        DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
    `
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) AddItem(ctx context.Context, owner Owner, productID int64, qty int, variants map[string]string) ([]Item, error) {
	key, err := owner.Key()
	if err != nil {
		return nil, err
	}
	if variants == nil {
		variants = map[string]string{}
	}
	raw, err := json.Marshal(variants)
	if err != nil {
		return nil, err
	}
	vk := VariantKey(variants)

	if qty > 0 {
		if _, err := r.db.ExecContext(ctx, upsertItemQuery, owner.StoreID, key, productID, qty, raw, vk); err != nil {
			return nil, err
		}
	} else if qty < 0 {
		// lines that would drop to zero or below are removed, the rest decremented
		if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items
            WHERE store_id = $1 AND owner_key = $2 AND product_id = $3 AND variant_key = $4 AND quantity + $5 <= 0`,
			owner.StoreID, key, productID, vk, qty); err != nil {
			return nil, err
		}
		if _, err := r.db.ExecContext(ctx, `UPDATE cart_items SET quantity = quantity + $1, updated_at = now()
            WHERE store_id = $2 AND owner_key = $3 AND product_id = $4 AND variant_key = $5`,
			qty, owner.StoreID, key, productID, vk); err != nil {
			return nil, err
		}
	}
	return r.GetItems(ctx, owner)
}

func (r *PostgresRepository) GetItems(ctx context.Context, owner Owner) ([]Item, error) {
	key, err := owner.Key()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, getItemsQuery, owner.StoreID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Item, 0)
	for rows.Next() {
		var it Item
		var raw []byte
		if err := rows.Scan(&it.ProductID, &it.Quantity, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &it.Variants); err != nil {
				return nil, err
			}
		}
		if len(it.Variants) == 0 {
			it.Variants = nil
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Clear(ctx context.Context, owner Owner) error {
	key, err := owner.Key()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE store_id = $1 AND owner_key = $2`, owner.StoreID, key)
	return err
}
