package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/order-service/internal/domain"
)

const orderColumns = `id, created_at, updated_at, user_id, items, total_price, status`

// orderFields maps public field names to columns for GetBy and Update.
var orderFields = map[string]string{
	"id":          "id",
	"user_id":     "user_id",
	"status":      "status",
	"items":       "items",
	"total_price": "total_price",
}

// PostgresOrderRepo persists orders. Every operation runs in its own
// transaction: commit on success, rollback on any failure.
type PostgresOrderRepo struct {
	Pool *pgxpool.Pool
}

func NewPostgresOrderRepo(pool *pgxpool.Pool) *PostgresOrderRepo {
	return &PostgresOrderRepo{Pool: pool}
}

var _ domain.OrderRepository = (*PostgresOrderRepo)(nil)

func (r *PostgresOrderRepo) Add(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal items: %w", err)
	}

	row := tx.QueryRow(ctx, `INSERT INTO "order" (id, user_id, items, total_price, status)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+orderColumns,
		order.ID, order.UserID, items, order.TotalPrice, string(order.Status))
	stored, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (r *PostgresOrderRepo) GetBy(ctx context.Context, field string, value any) (domain.Order, error) {
	col, ok := orderFields[field]
	if !ok {
		return domain.Order{}, fmt.Errorf("order field %q: %w", field, domain.ErrValidation)
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM "order" WHERE `+col+` = $1`, value)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return order, nil
}

// Update applies only the supplied fields and returns the post-update row.
// Transition legality is not checked here.
func (r *PostgresOrderRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (domain.Order, error) {
	if len(fields) == 0 {
		return domain.Order{}, domain.ErrValidation
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := orderFields[name]; !ok || name == "id" || name == "user_id" {
			return domain.Order{}, fmt.Errorf("order field %q: %w", name, domain.ErrValidation)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	set := "updated_at = now()"
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		val := fields[name]
		if name == "items" {
			raw, err := json.Marshal(val)
			if err != nil {
				return domain.Order{}, fmt.Errorf("marshal items: %w", err)
			}
			val = raw
		}
		args = append(args, val)
		set += fmt.Sprintf(", %s = $%d", orderFields[name], len(args))
	}
	args = append(args, id)

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		fmt.Sprintf(`UPDATE "order" SET %s WHERE id = $%d RETURNING %s`, set, len(args), orderColumns),
		args...)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return order, nil
}

func (r *PostgresOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+orderColumns+` FROM "order" WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order  domain.Order
		items  []byte
		status string
	)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt,
		&order.UserID, &items, &order.TotalPrice, &status); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal items: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}
