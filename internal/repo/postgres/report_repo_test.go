package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/repo"
)

// These tests need a disposable database: POSTGRES_TEST_DSN=postgres://... go test ./...
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE reports, users RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return pool
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestReportRepoLifecycle(t *testing.T) {
	pool := newTestPool(t)
	reports := NewReportRepo(pool)
	users := NewUserRepo(pool)
	ctx := context.Background()

	if _, err := users.Upsert(ctx, model.User{ID: 42, Username: "driver"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	created, err := reports.Create(ctx, model.Report{OwnerID: 42, MediaRef: "file-1", MediaKind: enums.MediaKindVideo})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if created.Status != enums.ReportStatusPendingCategory {
		t.Fatalf("unexpected status: %s", created.Status)
	}

	if err := reports.SetCategory(ctx, created.ID, "c2"); err != nil {
		t.Fatalf("set category: %v", err)
	}
	if err := reports.SetLocation(ctx, created.ID, model.Coordinates(50.4501, 30.5234)); err != nil {
		t.Fatalf("set coordinates: %v", err)
	}
	if err := reports.SetLocation(ctx, created.ID, model.Address("Avenue X")); err != nil {
		t.Fatalf("set address: %v", err)
	}

	got, err := reports.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.Location.HasGeo || got.Location.Address != "Avenue X" {
		t.Fatalf("unexpected location: %+v", got.Location)
	}

	if err := reports.TransitionStatus(ctx, created.ID, enums.ReportStatusPendingFinish, enums.ReportStatusRejected); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := reports.TransitionStatus(ctx, created.ID, enums.ReportStatusPendingFinish, enums.ReportStatusPublished); !errors.Is(err, repo.ErrStatusConflict) {
		t.Fatalf("expected status conflict, got %v", err)
	}

	queued, err := reports.Create(ctx, model.Report{OwnerID: 42, MediaRef: "file-2", MediaKind: enums.MediaKindPhoto})
	if err != nil {
		t.Fatalf("create second report: %v", err)
	}
	if err := reports.SetCategory(ctx, queued.ID, "c1"); err != nil {
		t.Fatalf("set category: %v", err)
	}
	if err := reports.TransitionStatus(ctx, queued.ID, enums.ReportStatusPendingFinish, enums.ReportStatusAwaitingModeration); err != nil {
		t.Fatalf("queue report: %v", err)
	}

	trust, err := reports.Approve(ctx, queued.ID, 2)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if trust != 1 {
		t.Fatalf("unexpected trust after approve: %d", trust)
	}
	if _, err := reports.Approve(ctx, queued.ID, 2); !errors.Is(err, repo.ErrStatusConflict) {
		t.Fatalf("second approve must conflict, got %v", err)
	}

	user, err := users.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Trust != 1 {
		t.Fatalf("unexpected trust: %d", user.Trust)
	}
}

func TestMigrateRecordsVersions(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var applied int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("read schema_migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("unexpected applied migrations: %d", applied)
	}
}
