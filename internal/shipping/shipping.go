package shipping

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

var (
	ErrNotFound = errors.New("shipping method not found")
)

// Method is a shipping option offered by a store.
type Method struct {
	ID          int64           `json:"id"`
	StoreID     int64           `json:"storeId"`
	Name        string          `json:"name"`
	BaseCost    decimal.Decimal `json:"baseCost"`
	HandlingFee decimal.Decimal `json:"handlingFee"`
	Active      bool            `json:"active"`
}

// Cost is the base cost plus the handling fee.
func (m Method) Cost() decimal.Decimal {
	return m.BaseCost.Add(m.HandlingFee).Round(2)
}

type Repository interface {
	GetByID(ctx context.Context, storeID, id int64) (Method, error)
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	methods []Method
}

func NewInMemoryRepository(seed []Method) *InMemoryRepository {
	r := &InMemoryRepository{methods: make([]Method, 0, len(seed))}
	r.methods = append(r.methods, seed...)
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, storeID, id int64) (Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.methods {
		if m.ID == id && m.StoreID == storeID {
			return m, nil
		}
	}
	return Method{}, ErrNotFound
}

type PostgresRepository struct {
	tm *postgres.TxManager
}

func NewPostgresRepository(tm *postgres.TxManager) *PostgresRepository {
	return &PostgresRepository{tm: tm}
}

func (r *PostgresRepository) GetByID(ctx context.Context, storeID, id int64) (Method, error) {
	var m Method
	err := r.tm.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, store_id, name, base_cost, handling_fee, active FROM shipping_methods WHERE store_id = $1 AND id = $2`,
		storeID, id).Scan(&m.ID, &m.StoreID, &m.Name, &m.BaseCost, &m.HandlingFee, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Method{}, ErrNotFound
	}
	return m, err
}
