package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wichananm65/storefront/internal/infrastructure/database/postgres"
)

type PostgresRepository struct {
	tm *postgres.TxManager
}

func NewPostgresRepository(tm *postgres.TxManager) *PostgresRepository {
	return &PostgresRepository{tm: tm}
}

const orderColumns = `id, number, store_id, customer_id, session_id, status, payment_status,
	customer_name, customer_email, customer_phone, shipping_address, billing_address,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
	payment_method, payment_gateway, payment_transaction_id, payment_details,
	coupon_code, coupon_discount, shipping_method_id, notes, cancel_reason,
	cancelled_at, confirmed_at, fulfilled_at, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	if err := o.CheckTotals(); err != nil {
		return err
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return err
	}
	details, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return err
	}

	db := r.tm.Executor(ctx)
	err = db.QueryRowContext(ctx, `INSERT INTO orders (number, store_id, customer_id, session_id, status, payment_status,
		customer_name, customer_email, customer_phone, shipping_address, billing_address,
		subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
		payment_method, payment_gateway, payment_transaction_id, payment_details,
		coupon_code, coupon_discount, shipping_method_id, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
		RETURNING id`,
		o.Number, o.StoreID, o.CustomerID, o.SessionID, o.Status, o.PaymentStatus,
		o.CustomerName, o.CustomerEmail, o.CustomerPhone, shipping, billing,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount, o.Currency,
		o.PaymentMethod, o.PaymentGateway, o.PaymentTransactionID, details,
		o.CouponCode, o.CouponDiscount, o.ShippingMethodID, o.Notes, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		variants, err := json.Marshal(it.Variants)
		if err != nil {
			return err
		}
		err = db.QueryRowContext(ctx, `INSERT INTO order_items (order_id, product_id, product_name, sku, unit_price, quantity, variants, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			o.ID, it.ProductID, it.ProductName, it.SKU, it.UnitPrice, it.Quantity, variants, it.TotalPrice,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, storeID int64, number string) (Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id = $1 AND number = $2`, storeID, number)
}

func (r *PostgresRepository) Lock(ctx context.Context, id int64) (Order, error) {
	if !postgres.InTx(ctx) {
		return Order{}, errors.New("order: Lock requires a transaction")
	}
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, o Order) error {
	details, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return err
	}
	res, err := r.tm.Executor(ctx).ExecContext(ctx, `UPDATE orders SET status = $1, payment_status = $2,
		payment_gateway = $3, payment_transaction_id = $4, payment_details = $5, cancel_reason = $6,
		cancelled_at = $7, confirmed_at = $8, fulfilled_at = $9, updated_at = $10
		WHERE id = $11`,
		o.Status, o.PaymentStatus, o.PaymentGateway, o.PaymentTransactionID, details, o.CancelReason,
		o.CancelledAt, o.ConfirmedAt, o.FulfilledAt, o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.tm.Executor(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`, number).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, storeID, customerID int64) ([]Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id = $1 AND customer_id = $2 ORDER BY id DESC`, storeID, customerID)
}

func (r *PostgresRepository) ListBySession(ctx context.Context, storeID int64, sessionID string) ([]Order, error) {
	if sessionID == "" {
		return []Order{}, nil
	}
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id = $1 AND customer_id IS NULL AND session_id = $2 ORDER BY id DESC`, storeID, sessionID)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Order, error) {
	o, err := scanOrder(r.tm.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.tm.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *PostgresRepository) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.tm.Executor(ctx).QueryContext(ctx, `SELECT id, order_id, product_id, product_name, sku, unit_price, quantity, variants, total_price
		FROM order_items WHERE order_id = ANY($1::bigint[]) ORDER BY id`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		var orderID int64
		var variants []byte
		if err := rows.Scan(&it.ID, &orderID, &it.ProductID, &it.ProductName, &it.SKU, &it.UnitPrice, &it.Quantity, &variants, &it.TotalPrice); err != nil {
			return nil, err
		}
		if len(variants) > 0 {
			if err := json.Unmarshal(variants, &it.Variants); err != nil {
				return nil, err
			}
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (Order, error) {
	var o Order
	var customerID, shippingMethodID sql.NullInt64
	var shipping, billing, details []byte
	var cancelledAt, confirmedAt, fulfilledAt sql.NullTime
	err := s.Scan(&o.ID, &o.Number, &o.StoreID, &customerID, &o.SessionID, &o.Status, &o.PaymentStatus,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &shipping, &billing,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
		&o.PaymentMethod, &o.PaymentGateway, &o.PaymentTransactionID, &details,
		&o.CouponCode, &o.CouponDiscount, &shippingMethodID, &o.Notes, &o.CancelReason,
		&cancelledAt, &confirmedAt, &fulfilledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if customerID.Valid {
		o.CustomerID = &customerID.Int64
	}
	if shippingMethodID.Valid {
		o.ShippingMethodID = &shippingMethodID.Int64
	}
	o.CancelledAt = timePtr(cancelledAt)
	o.ConfirmedAt = timePtr(confirmedAt)
	o.FulfilledAt = timePtr(fulfilledAt)
	for _, f := range []struct {
		raw []byte
		dst any
	}{{shipping, &o.ShippingAddress}, {billing, &o.BillingAddress}, {details, &o.PaymentDetails}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return Order{}, err
		}
	}
	return o, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
