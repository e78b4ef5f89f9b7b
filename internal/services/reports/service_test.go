package reports

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/infra/telegram"
	sqliterepo "github.com/ivankudzin/roadreport/internal/repo/sqlite"
	modsvc "github.com/ivankudzin/roadreport/internal/services/moderation"
	pendingsvc "github.com/ivankudzin/roadreport/internal/services/pending"
	pubsvc "github.com/ivankudzin/roadreport/internal/services/publisher"
)

type sentMedia struct {
	dest    telegram.Destination
	kind    string
	fileID  string
	caption string
}

type senderStub struct {
	sent []sentMedia
}

func (s *senderStub) SendMedia(_ context.Context, dest telegram.Destination, kind, fileID, caption string, _ [][]telegram.InlineButton) error {
	s.sent = append(s.sent, sentMedia{dest: dest, kind: kind, fileID: fileID, caption: caption})
	return nil
}

func (s *senderStub) to(dest string) []sentMedia {
	out := make([]sentMedia, 0, len(s.sent))
	for _, m := range s.sent {
		if m.dest.String() == dest {
			out = append(out, m)
		}
	}
	return out
}

type limiterStub struct {
	allowed  bool
	wait     time.Duration
	refunded int
}

func (l *limiterStub) AllowReport(context.Context, int64) (time.Duration, bool, error) {
	return l.wait, l.allowed, nil
}

func (l *limiterStub) Refund(context.Context, int64) error {
	l.refunded++
	return nil
}

type fixture struct {
	reports    *sqliterepo.ReportRepo
	users      *sqliterepo.UserRepo
	sender     *senderStub
	moderation *modsvc.Service
	service    *Service
}

func newFixture(t *testing.T, quota int, moderationChat string) fixture {
	t.Helper()

	db, err := sqliterepo.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reports := sqliterepo.NewReportRepo(db)
	users := sqliterepo.NewUserRepo(db)
	sender := &senderStub{}
	pub := pubsvc.New(sender, pubsvc.Config{Feed: "@zp_bez_pdr", Moderation: moderationChat}, nil, nil)
	router := modsvc.NewService(reports, users, pub, modsvc.NewMemoryLocker(), nil, nil, modsvc.Config{TrustQuota: quota})

	return fixture{
		reports:    reports,
		users:      users,
		sender:     sender,
		moderation: router,
		service:    NewService(reports, users, nil, router, pendingsvc.NewMemoryStore(time.Minute), nil),
	}
}

func (f fixture) newUser(t *testing.T, id int64) model.User {
	t.Helper()
	user, err := f.service.EnsureUser(context.Background(), model.User{ID: id, Username: "driver"})
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return user
}

func TestSubmitMediaOpensReport(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	for _, kind := range []string{"photo", "video"} {
		report, err := f.service.SubmitMedia(ctx, 42, "file-"+kind, kind, " підпис ")
		if err != nil {
			t.Fatalf("submit %s: %v", kind, err)
		}
		if report.Status != enums.ReportStatusPendingCategory || report.Category != "" {
			t.Fatalf("unexpected new report: %+v", report)
		}
		if report.MediaKind != enums.MediaKind(kind) || report.Caption != "підпис" {
			t.Fatalf("unexpected media fields: %+v", report)
		}
	}

	count, err := f.reports.CountByStatus(ctx, enums.ReportStatusPendingCategory)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("each submission creates one report, got %d", count)
	}
}

func TestSubmitMediaRejectsUnsupportedKinds(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	for _, kind := range []string{"document", "voice", "sticker", ""} {
		if _, err := f.service.SubmitMedia(ctx, 42, "file", kind, ""); !errors.Is(err, ErrUnsupportedMedia) {
			t.Fatalf("expected ErrUnsupportedMedia for %q, got %v", kind, err)
		}
	}

	count, _ := f.reports.CountByStatus(ctx, enums.ReportStatusPendingCategory)
	if count != 0 {
		t.Fatalf("unsupported media must not create reports, got %d", count)
	}
}

func TestSubmitMediaRateLimited(t *testing.T) {
	f := newFixture(t, 0, "")
	limiter := &limiterStub{allowed: false, wait: 20 * time.Minute}
	f.service.limiter = limiter

	_, err := f.service.SubmitMedia(context.Background(), 42, "file", "photo", "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var limitErr *RateLimitError
	if !errors.As(err, &limitErr) || limitErr.RetryAfter != 20*time.Minute {
		t.Fatalf("expected retry after 20m, got %v", err)
	}
	if _, err := f.reports.FindLatestOpen(context.Background(), 42); err == nil {
		t.Fatalf("limited submission must not create a report")
	}
}

func TestChooseCategoryWithoutOpenReport(t *testing.T) {
	f := newFixture(t, 0, "")

	if _, err := f.service.ChooseCategory(context.Background(), 42, "c1"); !errors.Is(err, ErrNoOpenReport) {
		t.Fatalf("expected ErrNoOpenReport, got %v", err)
	}
}

func TestChooseUnknownCategoryDoesNotMutate(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	report, err := f.service.SubmitMedia(ctx, 42, "file", "photo", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, code := range []string{"c9", "", "🚗 Паркування на тротуарі"} {
		if _, err := f.service.ChooseCategory(ctx, 42, code); !errors.Is(err, ErrUnknownCategory) {
			t.Fatalf("expected ErrUnknownCategory for %q, got %v", code, err)
		}
	}

	got, err := f.reports.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != enums.ReportStatusPendingCategory || got.Category != "" {
		t.Fatalf("unknown category must not mutate the report: %+v", got)
	}
}

func TestChooseCategoryTargetsNewestOpenReport(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	older, _ := f.service.SubmitMedia(ctx, 42, "old", "photo", "")
	newer, _ := f.service.SubmitMedia(ctx, 42, "new", "photo", "")

	got, err := f.service.ChooseCategory(ctx, 42, "c3")
	if err != nil {
		t.Fatalf("choose category: %v", err)
	}
	if got.Report.ID != newer.ID || got.Report.Status != enums.ReportStatusPendingFinish {
		t.Fatalf("expected newest report %d, got %+v", newer.ID, got.Report)
	}
	if got.HasLocation || got.HasNote {
		t.Fatalf("fresh report has no details: %+v", got)
	}

	abandoned, _ := f.reports.Get(ctx, older.ID)
	if abandoned.Status != enums.ReportStatusPendingCategory {
		t.Fatalf("older report must stay abandoned in pending_category, got %s", abandoned.Status)
	}
}

func TestLocationRepresentationsAreExclusive(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	report, _ := f.service.SubmitMedia(ctx, 42, "file", "photo", "")
	if _, err := f.service.ChooseCategory(ctx, 42, "c1"); err != nil {
		t.Fatalf("choose category: %v", err)
	}

	steps := []model.Location{
		model.Coordinates(50.4501, 30.5234),
		model.Address("Avenue X"),
		model.Coordinates(47.8388, 35.1396),
		model.Address("пр. Соборний, 1"),
	}
	for _, loc := range steps {
		state, err := f.service.AttachLocation(ctx, 42, report.ID, loc)
		if err != nil {
			t.Fatalf("attach %+v: %v", loc, err)
		}
		got := state.Report.Location
		if got.HasGeo && got.Address != "" {
			t.Fatalf("both location forms stored: %+v", got)
		}
		if got.Kind() != loc.Kind() || !state.HasLocation {
			t.Fatalf("unexpected location after %+v: %+v", loc, got)
		}
	}

	if _, err := f.service.AttachLocation(ctx, 42, report.ID, model.Address("  ")); !errors.Is(err, ErrEmptyDetail) {
		t.Fatalf("expected ErrEmptyDetail, got %v", err)
	}
}

func TestAttachNoteOverwritesAndChecksOwner(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	report, _ := f.service.SubmitMedia(ctx, 42, "file", "photo", "")
	if _, err := f.service.ChooseCategory(ctx, 42, "c1"); err != nil {
		t.Fatalf("choose category: %v", err)
	}

	if _, err := f.service.AttachNote(ctx, 42, report.ID, "перша"); err != nil {
		t.Fatalf("attach note: %v", err)
	}
	state, err := f.service.AttachNote(ctx, 42, report.ID, "друга")
	if err != nil {
		t.Fatalf("attach note again: %v", err)
	}
	if state.Report.Note != "друга" || !state.HasNote {
		t.Fatalf("last note must win: %+v", state)
	}

	if _, err := f.service.AttachNote(ctx, 7, report.ID, "чужа"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("foreign report must look missing, got %v", err)
	}
	if _, err := f.service.AttachNote(ctx, 42, 999, "x"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	long := strings.Repeat("н", maxNoteRunes+50)
	state, err = f.service.AttachNote(ctx, 42, report.ID, long)
	if err != nil {
		t.Fatalf("attach long note: %v", err)
	}
	if n := len([]rune(state.Report.Note)); n != maxNoteRunes {
		t.Fatalf("note must be capped, got %d runes", n)
	}
}

func TestPendingDetailFlow(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()

	report, _ := f.service.SubmitMedia(ctx, 42, "file", "photo", "")

	if err := f.service.RequestDetail(ctx, 42, report.ID, enums.DetailKindNote); !errors.Is(err, ErrReportClosed) {
		t.Fatalf("details need a category first, got %v", err)
	}
	if _, err := f.service.ChooseCategory(ctx, 42, "c1"); err != nil {
		t.Fatalf("choose category: %v", err)
	}

	if err := f.service.RequestDetail(ctx, 42, report.ID, enums.DetailKindLocation); err != nil {
		t.Fatalf("request location: %v", err)
	}
	if err := f.service.RequestDetail(ctx, 42, report.ID, enums.DetailKindNote); err != nil {
		t.Fatalf("request note: %v", err)
	}

	got, ok, err := f.service.TakePending(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("take pending: ok=%v err=%v", ok, err)
	}
	if got.Kind != pendingsvc.KindDetail || got.Detail != enums.DetailKindNote || got.ReportID != report.ID {
		t.Fatalf("latest request must replace the earlier one: %+v", got)
	}

	if err := f.service.RequestAdminMessage(ctx, 42); err != nil {
		t.Fatalf("request admin message: %v", err)
	}
	if _, err := f.service.SubmitMedia(ctx, 42, "file-2", "photo", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, ok, _ := f.service.TakePending(ctx, 42); ok {
		t.Fatalf("new submission must clear the pending interaction")
	}
}

func TestFinishOnlyFromPendingFinish(t *testing.T) {
	f := newFixture(t, 0, "")
	ctx := context.Background()
	f.newUser(t, 42)

	report, _ := f.service.SubmitMedia(ctx, 42, "file", "photo", "")
	if _, err := f.service.Finish(ctx, 42, report.ID); !errors.Is(err, modsvc.ErrNotFinishable) {
		t.Fatalf("expected ErrNotFinishable, got %v", err)
	}
	if _, err := f.service.ChooseCategory(ctx, 42, "c1"); err != nil {
		t.Fatalf("choose category: %v", err)
	}
	if _, err := f.service.Finish(ctx, 7, report.ID); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("foreign finish must look missing, got %v", err)
	}

	if outcome, err := f.service.Finish(ctx, 42, report.ID); err != nil || outcome != modsvc.OutcomePublished {
		t.Fatalf("finish: %s %v", outcome, err)
	}
	if _, err := f.service.Finish(ctx, 42, report.ID); !errors.Is(err, modsvc.ErrAlreadyFinished) {
		t.Fatalf("second finish must be refused, got %v", err)
	}
	if _, err := f.service.AttachNote(ctx, 42, report.ID, "пізно"); !errors.Is(err, ErrReportClosed) {
		t.Fatalf("published report accepts no details, got %v", err)
	}
	if n := len(f.sender.to("@zp_bez_pdr")); n != 1 {
		t.Fatalf("expected one feed post, got %d", n)
	}
}

func TestScenarioDirectPublishWithoutModeration(t *testing.T) {
	f := newFixture(t, 0, "-200")
	ctx := context.Background()
	f.newUser(t, 42)

	report, err := f.service.SubmitMedia(ctx, 42, "photo-file", "photo", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.service.ChooseCategory(ctx, 42, "c4"); err != nil {
		t.Fatalf("choose category: %v", err)
	}

	outcome, err := f.service.Finish(ctx, 42, report.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if outcome != modsvc.OutcomePublished {
		t.Fatalf("unexpected outcome: %s", outcome)
	}

	posts := f.sender.to("@zp_bez_pdr")
	if len(posts) != 1 || len(f.sender.sent) != 1 {
		t.Fatalf("expected exactly one feed post, got %d of %d sends", len(posts), len(f.sender.sent))
	}
	if posts[0].kind != telegram.MediaPhoto || !strings.Contains(posts[0].caption, "ПДР: п.15.9") {
		t.Fatalf("unexpected feed post: %+v", posts[0])
	}
	if !strings.Contains(posts[0].caption, "👤 Автор: @driver") {
		t.Fatalf("direct publish carries the author:\n%s", posts[0].caption)
	}

	got, _ := f.reports.Get(ctx, report.ID)
	if got.Status != enums.ReportStatusPublished {
		t.Fatalf("unexpected status: %s", got.Status)
	}
}

func TestScenarioModeratedApprove(t *testing.T) {
	f := newFixture(t, 2, "-200")
	ctx := context.Background()
	f.newUser(t, 42)

	report, err := f.service.SubmitMedia(ctx, 42, "video-file", "video", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.service.ChooseCategory(ctx, 42, "c2"); err != nil {
		t.Fatalf("choose category: %v", err)
	}
	if _, err := f.service.AttachLocation(ctx, 42, report.ID, model.Address("Avenue X")); err != nil {
		t.Fatalf("attach location: %v", err)
	}

	outcome, err := f.service.Finish(ctx, 42, report.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if outcome != modsvc.OutcomeQueued {
		t.Fatalf("unexpected outcome: %s", outcome)
	}
	if len(f.sender.to("@zp_bez_pdr")) != 0 || len(f.sender.to("-200")) != 1 {
		t.Fatalf("expected only a moderation card, got %+v", f.sender.sent)
	}

	if _, err := f.moderation.Decide(ctx, report.ID, enums.DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	posts := f.sender.to("@zp_bez_pdr")
	if len(posts) != 1 {
		t.Fatalf("expected one feed post, got %d", len(posts))
	}
	if posts[0].kind != telegram.MediaVideo || !strings.Contains(posts[0].caption, "📍 Avenue X") {
		t.Fatalf("unexpected feed post:\n%s", posts[0].caption)
	}
	if strings.Contains(posts[0].caption, "👤") {
		t.Fatalf("approved publish omits the author:\n%s", posts[0].caption)
	}

	user, err := f.users.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Trust != 1 {
		t.Fatalf("unexpected trust: %d", user.Trust)
	}
}

func TestScenarioModeratedReject(t *testing.T) {
	f := newFixture(t, 2, "-200")
	ctx := context.Background()
	f.newUser(t, 42)

	report, _ := f.service.SubmitMedia(ctx, 42, "photo-file", "photo", "")
	if _, err := f.service.ChooseCategory(ctx, 42, "c1"); err != nil {
		t.Fatalf("choose category: %v", err)
	}
	if _, err := f.service.Finish(ctx, 42, report.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if _, err := f.moderation.Decide(ctx, report.ID, enums.DecisionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if len(f.sender.to("@zp_bez_pdr")) != 0 {
		t.Fatalf("rejected report must never reach the feed")
	}
	got, _ := f.reports.Get(ctx, report.ID)
	if got.Status != enums.ReportStatusRejected {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	user, _ := f.users.Get(ctx, 42)
	if user.Trust != 0 {
		t.Fatalf("reject must not change trust, got %d", user.Trust)
	}
}
