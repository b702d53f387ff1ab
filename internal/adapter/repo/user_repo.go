package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/order-service/internal/domain"
)

const userColumns = `id, created_at, updated_at, email, password`

var userFields = map[string]string{
	"id":    "id",
	"email": "email",
}

// PostgresUserRepo persists accounts.
type PostgresUserRepo struct {
	Pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{Pool: pool}
}

var _ domain.UserRepository = (*PostgresUserRepo)(nil)

func (r *PostgresUserRepo) Add(ctx context.Context, email, password string) (domain.User, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var user domain.User
	row := tx.QueryRow(ctx, `INSERT INTO "user" (id, email, password)
        VALUES ($1, $2, $3) RETURNING `+userColumns, uuid.New(), email, password)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Password); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// unique_violation on email
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetBy(ctx context.Context, field string, value any) (domain.User, error) {
	col, ok := userFields[field]
	if !ok {
		return domain.User{}, fmt.Errorf("user field %q: %w", field, domain.ErrValidation)
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var user domain.User
	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE `+col+` = $1`, value)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Password); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}
