package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carehub/internal/common/database"

	"github.com/google/uuid"
)

const (
	OrderPending = "pending"
	OrderPaid    = "paid"
)

type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	Status          string      `json:"status"`
	TotalCents      int64       `json:"totalCents"`
	Currency        string      `json:"currency"`
	PaymentIntentID string      `json:"paymentIntentId,omitempty"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"createdAt"`
}

type Orders struct {
	db *sql.DB
}

// Create writes the order and its lines in one transaction. ID, status and
// timestamps are assigned here.
func (r *Orders) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.NewString()
	o.Status = OrderPending
	o.CreatedAt = now()

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, status, total_cents, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, o.UserID, o.Status, o.TotalCents, o.Currency, o.CreatedAt); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range o.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, name, price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5)`,
				o.ID, it.ProductID, it.Name, it.PriceCents, it.Quantity); err != nil {
				return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
			}
		}
		return nil
	})
}

func (r *Orders) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o := &Order{Items: []OrderItem{}}
	var intent sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_cents, currency, payment_intent_id, created_at
		FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.Currency, &intent, &o.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.PaymentIntentID = intent.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price_cents, quantity
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.PriceCents, &it.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Orders) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_intent_id = $1 WHERE id = $2`, intentID, orderID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
