package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/domain/rules"
	"github.com/ivankudzin/roadreport/internal/repo"
	modsvc "github.com/ivankudzin/roadreport/internal/services/moderation"
	pendingsvc "github.com/ivankudzin/roadreport/internal/services/pending"
)

const maxNoteRunes = 500

var (
	ErrUnsupportedMedia = errors.New("unsupported media kind")
	ErrRateLimited      = errors.New("report rate limit exceeded")
	ErrNoOpenReport     = errors.New("no open report to categorize")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrReportNotFound   = errors.New("report not found")
	ErrReportClosed     = errors.New("report no longer accepts details")
	ErrEmptyDetail      = errors.New("detail is empty")
)

// RateLimitError carries the wait before the next submission is accepted.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

type ReportRepo interface {
	Create(ctx context.Context, report model.Report) (model.Report, error)
	Get(ctx context.Context, id int64) (model.Report, error)
	FindLatestOpen(ctx context.Context, ownerID int64) (model.Report, error)
	SetCategory(ctx context.Context, id int64, category string) error
	SetLocation(ctx context.Context, id int64, loc model.Location) error
	SetNote(ctx context.Context, id int64, note string) error
}

type UserRepo interface {
	Upsert(ctx context.Context, user model.User) (model.User, error)
}

type RateLimiter interface {
	AllowReport(ctx context.Context, userID int64) (time.Duration, bool, error)
	Refund(ctx context.Context, userID int64) error
}

type Router interface {
	Route(ctx context.Context, reportID int64) (modsvc.Outcome, error)
}

// Enrichment is a report in pending_finish with the completion flags the
// detail menu shows.
type Enrichment struct {
	Report      model.Report
	HasLocation bool
	HasNote     bool
}

func enrichmentOf(report model.Report) Enrichment {
	return Enrichment{Report: report, HasLocation: report.HasLocation(), HasNote: report.HasNote()}
}

type Service struct {
	reports ReportRepo
	users   UserRepo
	limiter RateLimiter
	router  Router
	pending pendingsvc.Store
	logger  *zap.Logger
}

func NewService(reports ReportRepo, users UserRepo, limiter RateLimiter, router Router, pending pendingsvc.Store, logger *zap.Logger) *Service {
	if pending == nil {
		pending = pendingsvc.NewMemoryStore(pendingsvc.DefaultTTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		reports: reports,
		users:   users,
		limiter: limiter,
		router:  router,
		pending: pending,
		logger:  logger,
	}
}

// EnsureUser records the user on first contact and refreshes names later.
// Trust is never touched here.
func (s *Service) EnsureUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}
	if s.users == nil {
		return user, fmt.Errorf("user repo is not configured")
	}
	return s.users.Upsert(ctx, user)
}

// SubmitMedia opens a new report in pending_category. An older open report
// of the same owner is left as it is.
func (s *Service) SubmitMedia(ctx context.Context, ownerID int64, mediaRef, mediaKind, caption string) (model.Report, error) {
	kind, ok := enums.ParseMediaKind(mediaKind)
	if !ok {
		return model.Report{}, ErrUnsupportedMedia
	}
	if strings.TrimSpace(mediaRef) == "" {
		return model.Report{}, fmt.Errorf("media reference is required")
	}

	if s.limiter != nil {
		wait, allowed, err := s.limiter.AllowReport(ctx, ownerID)
		if err != nil {
			// the limit is a courtesy; a Redis outage must not stop reports
			s.logger.Warn("report rate check failed", zap.Int64("user_id", ownerID), zap.Error(err))
		} else if !allowed {
			return model.Report{}, &RateLimitError{RetryAfter: wait}
		}
	}

	report, err := s.reports.Create(ctx, model.Report{
		OwnerID:   ownerID,
		MediaRef:  mediaRef,
		MediaKind: kind,
		Caption:   strings.TrimSpace(caption),
	})
	if err != nil {
		if s.limiter != nil {
			if refundErr := s.limiter.Refund(ctx, ownerID); refundErr != nil {
				s.logger.Warn("refund report rate slot", zap.Int64("user_id", ownerID), zap.Error(refundErr))
			}
		}
		return model.Report{}, fmt.Errorf("create report: %w", err)
	}

	if err := s.pending.Clear(ctx, ownerID); err != nil {
		s.logger.Warn("clear pending interaction", zap.Int64("user_id", ownerID), zap.Error(err))
	}

	s.logger.Info("report opened",
		zap.Int64("report_id", report.ID),
		zap.Int64("user_id", ownerID),
		zap.String("media_kind", string(kind)),
	)
	return report, nil
}

// ChooseCategory sets the category of the owner's newest open report.
func (s *Service) ChooseCategory(ctx context.Context, ownerID int64, code string) (Enrichment, error) {
	category, ok := rules.LookupCategory(code)
	if !ok {
		return Enrichment{}, ErrUnknownCategory
	}

	open, err := s.reports.FindLatestOpen(ctx, ownerID)
	if errors.Is(err, repo.ErrReportNotFound) {
		return Enrichment{}, ErrNoOpenReport
	}
	if err != nil {
		return Enrichment{}, fmt.Errorf("find open report: %w", err)
	}

	if err := s.reports.SetCategory(ctx, open.ID, category.Code); err != nil {
		// a double tap lost the race to categorize the same report
		if errors.Is(err, repo.ErrStatusConflict) || errors.Is(err, repo.ErrReportNotFound) {
			return Enrichment{}, ErrNoOpenReport
		}
		return Enrichment{}, fmt.Errorf("set category: %w", err)
	}

	open.Category = category.Code
	open.Status = enums.ReportStatusPendingFinish

	s.logger.Info("report categorized",
		zap.Int64("report_id", open.ID),
		zap.Int64("user_id", ownerID),
		zap.String("category", category.Code),
	)
	return enrichmentOf(open), nil
}

// AttachLocation stores coordinates or an address, replacing the other form.
func (s *Service) AttachLocation(ctx context.Context, ownerID, reportID int64, loc model.Location) (Enrichment, error) {
	if !loc.IsSet() {
		return Enrichment{}, ErrEmptyDetail
	}
	if _, err := s.editable(ctx, ownerID, reportID); err != nil {
		return Enrichment{}, err
	}

	if err := s.reports.SetLocation(ctx, reportID, loc); err != nil {
		return Enrichment{}, s.editError(err)
	}
	return s.Current(ctx, ownerID, reportID)
}

func (s *Service) AttachNote(ctx context.Context, ownerID, reportID int64, note string) (Enrichment, error) {
	note = truncateRunes(strings.TrimSpace(note), maxNoteRunes)
	if note == "" {
		return Enrichment{}, ErrEmptyDetail
	}
	if _, err := s.editable(ctx, ownerID, reportID); err != nil {
		return Enrichment{}, err
	}

	if err := s.reports.SetNote(ctx, reportID, note); err != nil {
		return Enrichment{}, s.editError(err)
	}
	return s.Current(ctx, ownerID, reportID)
}

// Current returns the enrichment state of an owned report in pending_finish.
func (s *Service) Current(ctx context.Context, ownerID, reportID int64) (Enrichment, error) {
	report, err := s.editable(ctx, ownerID, reportID)
	if err != nil {
		return Enrichment{}, err
	}
	return enrichmentOf(report), nil
}

// RequestDetail reserves the owner's next message as a detail for the report.
func (s *Service) RequestDetail(ctx context.Context, ownerID, reportID int64, kind enums.DetailKind) error {
	if !kind.Valid() {
		return pendingsvc.ErrInvalidInteraction
	}
	if _, err := s.editable(ctx, ownerID, reportID); err != nil {
		return err
	}
	return s.pending.Put(ctx, ownerID, pendingsvc.Detail(kind, reportID))
}

// RequestAdminMessage reserves the user's next text for the administrators.
func (s *Service) RequestAdminMessage(ctx context.Context, userID int64) error {
	return s.pending.Put(ctx, userID, pendingsvc.AdminMessage())
}

// TakePending consumes the user's pending interaction, if any.
func (s *Service) TakePending(ctx context.Context, userID int64) (pendingsvc.Interaction, bool, error) {
	return s.pending.Take(ctx, userID)
}

// Finish hands an owned report to the router. It is the only way out of
// pending_finish.
func (s *Service) Finish(ctx context.Context, ownerID, reportID int64) (modsvc.Outcome, error) {
	if s.router == nil {
		return "", fmt.Errorf("report router is not configured")
	}
	if _, err := s.owned(ctx, ownerID, reportID); err != nil {
		return "", err
	}

	if err := s.pending.Clear(ctx, ownerID); err != nil {
		s.logger.Warn("clear pending interaction", zap.Int64("user_id", ownerID), zap.Error(err))
	}
	return s.router.Route(ctx, reportID)
}

func (s *Service) owned(ctx context.Context, ownerID, reportID int64) (model.Report, error) {
	report, err := s.reports.Get(ctx, reportID)
	if errors.Is(err, repo.ErrReportNotFound) {
		return model.Report{}, ErrReportNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("load report: %w", err)
	}
	if report.OwnerID != ownerID {
		return model.Report{}, ErrReportNotFound
	}
	return report, nil
}

func (s *Service) editable(ctx context.Context, ownerID, reportID int64) (model.Report, error) {
	report, err := s.owned(ctx, ownerID, reportID)
	if err != nil {
		return model.Report{}, err
	}
	if report.Status != enums.ReportStatusPendingFinish {
		return model.Report{}, ErrReportClosed
	}
	return report, nil
}

func (s *Service) editError(err error) error {
	switch {
	case errors.Is(err, repo.ErrReportNotFound):
		return ErrReportNotFound
	case errors.Is(err, repo.ErrStatusConflict):
		return ErrReportClosed
	default:
		return fmt.Errorf("update report: %w", err)
	}
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
