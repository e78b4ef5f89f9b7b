package publisher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/infra/telegram"
	"github.com/ivankudzin/roadreport/internal/transport/callback"
)

// ErrPublish wraps every send the transport rejected.
var ErrPublish = errors.New("publish failed")

var ErrModerationDisabled = errors.New("moderation destination is not configured")

type Sender interface {
	SendMedia(ctx context.Context, dest telegram.Destination, kind, fileID, caption string, rows [][]telegram.InlineButton) error
}

// Archiver receives every published report. It must not block.
type Archiver interface {
	Archive(ctx context.Context, report model.Report)
}

type Config struct {
	Feed       string
	Moderation string
}

type Publisher struct {
	sender     Sender
	archiver   Archiver
	logger     *zap.Logger
	feed       telegram.Destination
	feedErr    error
	moderation telegram.Destination
}

func New(sender Sender, cfg Config, archiver Archiver, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Publisher{sender: sender, archiver: archiver, logger: logger}
	p.feed, p.feedErr = telegram.ParseDestination(cfg.Feed)
	if cfg.Moderation != "" {
		if dest, err := telegram.ParseDestination(cfg.Moderation); err != nil {
			logger.Warn("moderation destination is invalid, moderation disabled", zap.String("destination", cfg.Moderation), zap.Error(err))
		} else {
			p.moderation = dest
		}
	}
	return p
}

func (p *Publisher) ModerationConfigured() bool {
	return !p.moderation.IsZero()
}

// Publish posts the report with its media to the feed. author is nil when
// the author line must be left out.
func (p *Publisher) Publish(ctx context.Context, report model.Report, author *model.User) error {
	if p.feedErr != nil {
		return fmt.Errorf("%w: feed destination: %w", ErrPublish, p.feedErr)
	}

	attributor := ""
	if author != nil {
		attributor = Attributor(*author)
	}

	if err := p.send(ctx, p.feed, report, Format(report, attributor), nil); err != nil {
		return err
	}

	p.logger.Info("report published",
		zap.Int64("report_id", report.ID),
		zap.Int64("user_id", report.OwnerID),
		zap.String("category", report.Category),
	)
	if p.archiver != nil {
		p.archiver.Archive(ctx, report)
	}
	return nil
}

// SendModerationCard posts the report to the moderation destination with
// approve and reject buttons.
func (p *Publisher) SendModerationCard(ctx context.Context, report model.Report, author model.User) error {
	if !p.ModerationConfigured() {
		return ErrModerationDisabled
	}

	rows := [][]telegram.InlineButton{{
		{Text: "✅ Опублікувати", Data: callback.Moderate(enums.DecisionApprove, report.ID).Encode()},
		{Text: "❌ Відхилити", Data: callback.Moderate(enums.DecisionReject, report.ID).Encode()},
	}}

	return p.send(ctx, p.moderation, report, ModerationCaption(report, author), rows)
}

func (p *Publisher) send(ctx context.Context, dest telegram.Destination, report model.Report, caption string, rows [][]telegram.InlineButton) error {
	if p.sender == nil {
		return fmt.Errorf("%w: sender is not configured", ErrPublish)
	}

	kind, err := mediaKind(report.MediaKind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	if err := p.sender.SendMedia(ctx, dest, kind, report.MediaRef, caption, rows); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

func mediaKind(kind enums.MediaKind) (string, error) {
	switch kind {
	case enums.MediaKindPhoto:
		return telegram.MediaPhoto, nil
	case enums.MediaKindVideo:
		return telegram.MediaVideo, nil
	default:
		return "", fmt.Errorf("unsupported media kind %q", kind)
	}
}
