package moderation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	redrepo "github.com/ivankudzin/roadreport/internal/repo/redis"
	"github.com/ivankudzin/roadreport/internal/repo/sqlite"
)

type sqliteStore struct {
	reports *sqlite.ReportRepo
	users   *sqlite.UserRepo
}

func newSQLiteStore(t *testing.T) sqliteStore {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return sqliteStore{reports: sqlite.NewReportRepo(db), users: sqlite.NewUserRepo(db)}
}

// report stores a categorized report of owner in the given status.
func (s sqliteStore) report(t *testing.T, ownerID int64, status enums.ReportStatus) int64 {
	t.Helper()
	ctx := context.Background()

	created, err := s.reports.Create(ctx, model.Report{OwnerID: ownerID, MediaRef: "file", MediaKind: enums.MediaKindPhoto})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if err := s.reports.SetCategory(ctx, created.ID, "c1"); err != nil {
		t.Fatalf("set category: %v", err)
	}
	if status != enums.ReportStatusPendingFinish {
		if err := s.reports.TransitionStatus(ctx, created.ID, enums.ReportStatusPendingFinish, status); err != nil {
			t.Fatalf("move report to %s: %v", status, err)
		}
	}
	return created.ID
}

func (s sqliteStore) status(t *testing.T, id int64) enums.ReportStatus {
	t.Helper()
	report, err := s.reports.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	return report.Status
}

func TestRoutePublishesOnceWhenCallerGoesAway(t *testing.T) {
	store := newSQLiteStore(t)
	id := store.report(t, 42, enums.ReportStatusPendingFinish)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &publisherStub{onPublishing: cancel}
	svc := NewService(store.reports, store.users, pub, nil, nil, nil, Config{})

	if _, err := svc.Route(ctx, id); err != nil {
		t.Fatalf("route: %v", err)
	}
	if _, err := svc.Route(context.Background(), id); err == nil {
		t.Fatalf("second finish must be refused")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one feed post, got %d", len(pub.published))
	}
	if status := store.status(t, id); status != enums.ReportStatusPublished {
		t.Fatalf("unexpected status: %s", status)
	}
}

func TestParallelApprovalsOfOneAuthorRaiseTrustTwice(t *testing.T) {
	store := newSQLiteStore(t)
	if _, err := store.users.Upsert(context.Background(), model.User{ID: 7}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	first := store.report(t, 7, enums.ReportStatusAwaitingModeration)
	second := store.report(t, 7, enums.ReportStatusAwaitingModeration)

	pub := &publisherStub{moderation: true}
	svc := NewService(store.reports, store.users, pub, NewMemoryLocker(), nil, nil, Config{TrustQuota: 5})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{first, second} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = svc.Decide(context.Background(), id, enums.DecisionApprove)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("approve #%d: %v", i+1, err)
		}
	}
	user, err := store.users.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Trust != 2 {
		t.Fatalf("each approval must raise trust: got %d want 2", user.Trust)
	}
}

func TestRouteKeepsPublishingWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer func() { _ = client.Close() }()
	mr.Close()

	store := newSQLiteStore(t)
	id := store.report(t, 42, enums.ReportStatusPendingFinish)

	pub := &publisherStub{}
	locker := NewFallbackLocker(redrepo.NewLockRepo(client, time.Minute), nil)
	svc := NewService(store.reports, store.users, pub, locker, nil, nil, Config{})

	got, err := svc.Route(context.Background(), id)
	if err != nil {
		t.Fatalf("route with redis down: %v", err)
	}
	if got != OutcomePublished || len(pub.published) != 1 {
		t.Fatalf("report must be published: outcome=%s posts=%d", got, len(pub.published))
	}
	if status := store.status(t, id); status != enums.ReportStatusPublished {
		t.Fatalf("unexpected status: %s", status)
	}
}
