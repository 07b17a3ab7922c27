package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

const selectStore = `SELECT id, slug, name, currency, tax_rate, gateways FROM stores`

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Store, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectStore+` WHERE id = $1`, id))
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (Store, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectStore+` WHERE slug = $1`, slug))
}

func (r *PostgresRepository) scan(row *sql.Row) (Store, error) {
	var s Store
	var gateways []byte
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Currency, &s.TaxRate, &gateways); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, err
	}
	if len(gateways) > 0 {
		if err := json.Unmarshal(gateways, &s.Gateways); err != nil {
			return Store{}, err
		}
	}
	return s, nil
}
