package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/repo"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Upsert(ctx context.Context, user model.User) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if user.ID == 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	var out model.User
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (user_id, username, display_name, trust, first_seen)
VALUES ($1, $2, $3, 0, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END,
	display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE users.display_name END
RETURNING user_id, username, display_name, trust, first_seen
`, user.ID, strings.TrimSpace(user.Username), strings.TrimSpace(user.DisplayName)).Scan(
		&out.ID,
		&out.Username,
		&out.DisplayName,
		&out.Trust,
		&out.FirstSeen,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("upsert user: %w", err)
	}

	return out, nil
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	var out model.User
	err := r.pool.QueryRow(ctx, `
SELECT user_id, username, display_name, trust, first_seen
FROM users
WHERE user_id = $1
`, userID).Scan(&out.ID, &out.Username, &out.DisplayName, &out.Trust, &out.FirstSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, repo.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}

	return out, nil
}
