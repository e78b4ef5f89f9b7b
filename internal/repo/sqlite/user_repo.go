package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/repo"
)

type UserRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

// Upsert creates the user on first contact and refreshes the profile names
// afterwards. Trust and first_seen are never touched here.
func (r *UserRepo) Upsert(ctx context.Context, user model.User) (model.User, error) {
	if r.db == nil {
		return model.User{}, fmt.Errorf("sqlite db is nil")
	}
	if user.ID == 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO users (user_id, username, display_name, trust, first_seen)
VALUES (?, ?, ?, 0, ?)
ON CONFLICT (user_id) DO UPDATE SET
	username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE users.username END,
	display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE users.display_name END
`, user.ID, strings.TrimSpace(user.Username), strings.TrimSpace(user.DisplayName), r.now().UTC().Unix()); err != nil {
		return model.User{}, fmt.Errorf("upsert user: %w", err)
	}

	return r.Get(ctx, user.ID)
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (model.User, error) {
	if r.db == nil {
		return model.User{}, fmt.Errorf("sqlite db is nil")
	}

	var (
		user      model.User
		firstSeen int64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT user_id, username, display_name, trust, first_seen
FROM users
WHERE user_id = ?
`, userID).Scan(&user.ID, &user.Username, &user.DisplayName, &user.Trust, &firstSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, repo.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	user.FirstSeen = time.Unix(firstSeen, 0).UTC()

	return user, nil
}
