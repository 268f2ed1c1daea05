package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
	"github.com/ariefcatur/go-apparel-checkout/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres order repository. Money columns hold minor units.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, address, amount_minor, payment_method, payment, status,
		                   refunded, gateway_ref, created_at, estimated_delivery, updated_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.UserID, addr, money.Minor(o.Amount), string(o.PaymentMethod), o.Payment, string(o.Status),
		o.Refunded, o.GatewayRef, o.CreatedAt, o.EstimatedDelivery, o.UpdatedAt, o.Version)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, name, color, size, qty, price_minor)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			o.ID, i, it.ProductID, it.Name, it.Color, it.Size, it.Quantity, money.Minor(it.Price)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, user_id, address, amount_minor, payment_method, payment, status,
	refunded, gateway_ref, created_at, estimated_delivery, updated_at, version`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		addr   []byte
		amount int64
		method string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &addr, &amount, &method, &o.Payment, &status,
		&o.Refunded, &o.GatewayRef, &o.CreatedAt, &o.EstimatedDelivery, &o.UpdatedAt, &o.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.Address); err != nil {
		return nil, err
	}
	o.Amount = money.FromMinor(amount)
	o.PaymentMethod = PaymentMethod(method)
	o.Status = Status(status)
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	list := []Order{*o}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) loadItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string]int, len(list))
	for i, o := range list {
		ids = append(ids, o.ID)
		byID[o.ID] = i
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, color, size, qty, price_minor
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      LineItem
			price   int64
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Color, &it.Size, &it.Quantity, &price); err != nil {
			return err
		}
		it.Price = money.FromMinor(price)
		idx := byID[orderID]
		list[idx].Items = append(list[idx].Items, it)
	}
	return rows.Err()
}

// Update writes the mutable fields only; items, amount and owner are immutable.
func (r *Repo) Update(ctx context.Context, o *Order, expectVersion int) error {
	now := time.Now().UTC()
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$3, payment=$4, refunded=$5, gateway_ref=$6, estimated_delivery=$7,
		    updated_at=$8, version=version+1
		WHERE id=$1 AND version=$2`,
		o.ID, expectVersion, string(o.Status), o.Payment, o.Refunded, o.GatewayRef, o.EstimatedDelivery, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflict(ctx, o.ID)
	}
	o.Version = expectVersion + 1
	o.UpdatedAt = now
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string, expectVersion int) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1 AND version=$2`, id, expectVersion)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflict(ctx, id)
	}
	return nil
}

func (r *Repo) conflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("order %s not found", id)
	}
	return apperr.InvalidTransition("order %s was modified concurrently", id)
}
