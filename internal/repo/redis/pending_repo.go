package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	pendingsvc "github.com/ivankudzin/roadreport/internal/services/pending"
)

const pendingPrefix = "pending:"

// PendingRepo stores pending interactions in a hash per user so that a
// restart or a second replica does not lose them.
type PendingRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPendingRepo(client *goredis.Client, ttl time.Duration) *PendingRepo {
	if ttl <= 0 {
		ttl = pendingsvc.DefaultTTL
	}
	return &PendingRepo{client: client, ttl: ttl}
}

func (r *PendingRepo) Put(ctx context.Context, userID int64, interaction pendingsvc.Interaction) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := interaction.Validate(); err != nil {
		return err
	}

	key := pendingKey(userID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"kind":      string(interaction.Kind),
		"detail":    string(interaction.Detail),
		"report_id": interaction.ReportID,
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put pending interaction: %w", err)
	}
	return nil
}

func (r *PendingRepo) Take(ctx context.Context, userID int64) (pendingsvc.Interaction, bool, error) {
	if r.client == nil {
		return pendingsvc.Interaction{}, false, fmt.Errorf("redis client is nil")
	}

	key := pendingKey(userID)
	pipe := r.client.TxPipeline()
	get := pipe.HGetAll(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return pendingsvc.Interaction{}, false, fmt.Errorf("take pending interaction: %w", err)
	}

	values := get.Val()
	if len(values) == 0 {
		return pendingsvc.Interaction{}, false, nil
	}

	reportID, _ := strconv.ParseInt(values["report_id"], 10, 64)
	interaction := pendingsvc.Interaction{
		Kind:     pendingsvc.Kind(values["kind"]),
		Detail:   enums.DetailKind(values["detail"]),
		ReportID: reportID,
	}
	if err := interaction.Validate(); err != nil {
		return pendingsvc.Interaction{}, false, nil
	}
	return interaction, true, nil
}

func (r *PendingRepo) Clear(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, pendingKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear pending interaction: %w", err)
	}
	return nil
}

func pendingKey(userID int64) string {
	return pendingPrefix + strconv.FormatInt(userID, 10)
}
