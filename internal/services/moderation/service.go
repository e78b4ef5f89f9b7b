package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/domain/rules"
	"github.com/ivankudzin/roadreport/internal/repo"
)

var (
	ErrReportNotFound  = errors.New("report not found")
	ErrNotFinishable   = errors.New("report is not ready to finish")
	ErrAlreadyFinished = errors.New("report is already finished")
	ErrAlreadyDecided  = errors.New("report is already decided")
	ErrInProgress      = errors.New("report is being processed")
	ErrInvalidDecision = errors.New("invalid moderation decision")
	ErrDependencies    = errors.New("moderation dependencies are not configured")
)

type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeQueued    Outcome = "queued_for_moderation"
)

type ReportRepo interface {
	Get(ctx context.Context, id int64) (model.Report, error)
	TransitionStatus(ctx context.Context, id int64, from, to enums.ReportStatus) error
	// Approve moves a report from awaiting_moderation to published and raises
	// the owner's trust, capped at trustLimit, as one unit. It returns the
	// owner's trust afterwards.
	Approve(ctx context.Context, id int64, trustLimit int) (int, error)
}

type UserRepo interface {
	Get(ctx context.Context, id int64) (model.User, error)
}

type Publisher interface {
	Publish(ctx context.Context, report model.Report, author *model.User) error
	SendModerationCard(ctx context.Context, report model.Report, author model.User) error
	ModerationConfigured() bool
}

// Notifier is the best-effort channel to administrators.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	TrustQuota int
}

type Service struct {
	reports   ReportRepo
	users     UserRepo
	publisher Publisher
	locker    Locker
	notifier  Notifier
	logger    *zap.Logger
	quota     int
}

func NewService(reports ReportRepo, users UserRepo, publisher Publisher, locker Locker, notifier Notifier, logger *zap.Logger, cfg Config) *Service {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	quota := cfg.TrustQuota
	if quota < 0 {
		quota = 0
	}

	return &Service{
		reports:   reports,
		users:     users,
		publisher: publisher,
		locker:    locker,
		notifier:  notifier,
		logger:    logger,
		quota:     quota,
	}
}

// Route finishes a report in pending_finish: it goes to moderation when the
// author's trust is below the quota and a moderation destination exists,
// otherwise it is published. The status changes only after the send
// succeeded, and once it did the change is committed even if ctx is done.
func (s *Service) Route(ctx context.Context, reportID int64) (Outcome, error) {
	if s.reports == nil || s.users == nil || s.publisher == nil {
		return "", ErrDependencies
	}

	release, err := s.lock(ctx, reportID)
	if err != nil {
		return "", err
	}
	defer release()

	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return "", err
	}
	switch report.Status {
	case enums.ReportStatusPendingFinish:
	case enums.ReportStatusPendingCategory:
		return "", ErrNotFinishable
	default:
		return "", ErrAlreadyFinished
	}

	author, err := s.author(ctx, report.OwnerID)
	if err != nil {
		return "", err
	}

	log := s.logger.With(zap.Int64("report_id", report.ID), zap.Int64("user_id", report.OwnerID))

	if rules.RequiresModeration(author.Trust, s.quota, s.publisher.ModerationConfigured()) {
		if err := s.publisher.SendModerationCard(ctx, report, author); err != nil {
			s.notifyFailure(ctx, report.ID, "надіслати на модерацію", err)
			return "", fmt.Errorf("send moderation card: %w", err)
		}
		if err := s.reports.TransitionStatus(context.WithoutCancel(ctx), report.ID, enums.ReportStatusPendingFinish, enums.ReportStatusAwaitingModeration); err != nil {
			return "", s.transitionError(err)
		}
		log.Info("report queued for moderation", zap.Int("trust", author.Trust))
		return OutcomeQueued, nil
	}

	if err := s.publisher.Publish(ctx, report, &author); err != nil {
		s.notifyFailure(ctx, report.ID, "опублікувати", err)
		return "", fmt.Errorf("publish report: %w", err)
	}
	if err := s.reports.TransitionStatus(context.WithoutCancel(ctx), report.ID, enums.ReportStatusPendingFinish, enums.ReportStatusPublished); err != nil {
		log.Error("report published but status not updated", zap.Error(err))
		return "", s.transitionError(err)
	}
	return OutcomePublished, nil
}

// Decide applies a moderator decision to a report awaiting moderation.
// Approval publishes without the author line and raises the author's trust.
func (s *Service) Decide(ctx context.Context, reportID int64, decision enums.Decision) (model.Report, error) {
	if !decision.Valid() {
		return model.Report{}, ErrInvalidDecision
	}
	if s.reports == nil || s.users == nil || s.publisher == nil {
		return model.Report{}, ErrDependencies
	}

	release, err := s.lock(ctx, reportID)
	if err != nil {
		return model.Report{}, err
	}
	defer release()

	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return model.Report{}, err
	}
	if report.Status != enums.ReportStatusAwaitingModeration {
		return report, ErrAlreadyDecided
	}

	log := s.logger.With(zap.Int64("report_id", report.ID), zap.Int64("user_id", report.OwnerID))

	if decision == enums.DecisionReject {
		if err := s.reports.TransitionStatus(ctx, report.ID, enums.ReportStatusAwaitingModeration, enums.ReportStatusRejected); err != nil {
			return report, s.transitionError(err)
		}
		report.Status = enums.ReportStatusRejected
		log.Info("report rejected")
		return report, nil
	}

	if err := s.publisher.Publish(ctx, report, nil); err != nil {
		s.notifyFailure(ctx, report.ID, "опублікувати після схвалення", err)
		return report, fmt.Errorf("publish approved report: %w", err)
	}
	trust, err := s.reports.Approve(context.WithoutCancel(ctx), report.ID, s.quota)
	if err != nil {
		log.Error("approved report published but status not updated", zap.Error(err))
		return report, s.transitionError(err)
	}
	report.Status = enums.ReportStatusPublished

	log.Info("report approved", zap.Int("trust", trust))
	return report, nil
}

// author falls back to a zero-trust user when the owner was never stored.
func (s *Service) author(ctx context.Context, userID int64) (model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return model.User{ID: userID}, nil
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load report author: %w", err)
	}
	return user, nil
}

func (s *Service) getReport(ctx context.Context, id int64) (model.Report, error) {
	if id <= 0 {
		return model.Report{}, ErrReportNotFound
	}

	report, err := s.reports.Get(ctx, id)
	if errors.Is(err, repo.ErrReportNotFound) {
		return model.Report{}, ErrReportNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("load report: %w", err)
	}
	return report, nil
}

func (s *Service) lock(ctx context.Context, reportID int64) (func(), error) {
	release, ok, err := s.locker.TryLock(ctx, "report:"+strconv.FormatInt(reportID, 10))
	if err != nil {
		return nil, fmt.Errorf("lock report: %w", err)
	}
	if !ok {
		return nil, ErrInProgress
	}
	return release, nil
}

func (s *Service) transitionError(err error) error {
	switch {
	case errors.Is(err, repo.ErrReportNotFound):
		return ErrReportNotFound
	case errors.Is(err, repo.ErrStatusConflict):
		return fmt.Errorf("%w: %w", ErrAlreadyDecided, err)
	default:
		return fmt.Errorf("update report status: %w", err)
	}
}

func (s *Service) notifyFailure(ctx context.Context, reportID int64, action string, err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, fmt.Sprintf("❗ Не вдалося %s заявку #%d: %v", action, reportID, err))
}
