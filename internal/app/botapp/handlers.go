package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/model"
	tginfra "github.com/ivankudzin/roadreport/internal/infra/telegram"
	modsvc "github.com/ivankudzin/roadreport/internal/services/moderation"
	pendingsvc "github.com/ivankudzin/roadreport/internal/services/pending"
	pubsvc "github.com/ivankudzin/roadreport/internal/services/publisher"
	reportsvc "github.com/ivankudzin/roadreport/internal/services/reports"
	"github.com/ivankudzin/roadreport/internal/transport/callback"
	"github.com/ivankudzin/roadreport/internal/ui"
)

// Messenger is the part of the bot the handlers talk through.
type Messenger interface {
	SendText(ctx context.Context, dest tginfra.Destination, text string) error
	SendInline(ctx context.Context, dest tginfra.Destination, text string, rows [][]tginfra.InlineButton) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]tginfra.InlineButton) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, rows [][]tginfra.InlineButton) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type HandlersConfig struct {
	AdminDestination      string
	ModerationDestination string
}

type Handlers struct {
	messenger  Messenger
	reports    *reportsvc.Service
	moderation *modsvc.Service
	admin      tginfra.Destination
	moderators tginfra.Destination
	logger     *zap.Logger
}

func NewHandlers(messenger Messenger, reports *reportsvc.Service, moderation *modsvc.Service, cfg HandlersConfig, logger *zap.Logger) (*Handlers, error) {
	if messenger == nil || reports == nil || moderation == nil {
		return nil, fmt.Errorf("bot handlers dependencies are not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handlers{
		messenger:  messenger,
		reports:    reports,
		moderation: moderation,
		logger:     logger,
	}
	if strings.TrimSpace(cfg.AdminDestination) != "" {
		dest, err := tginfra.ParseDestination(cfg.AdminDestination)
		if err != nil {
			logger.Warn("admin destination is invalid, admin messages disabled", zap.Error(err))
		} else {
			h.admin = dest
		}
	}
	if strings.TrimSpace(cfg.ModerationDestination) != "" {
		if dest, err := tginfra.ParseDestination(cfg.ModerationDestination); err == nil {
			h.moderators = dest
		}
	}
	return h, nil
}

func (h *Handlers) Telegram() tginfra.Handlers {
	return tginfra.Handlers{
		OnCommand:     h.handleCommand,
		OnMedia:       h.handleMedia,
		OnUnsupported: h.handleUnsupported,
		OnText:        h.handleText,
		OnLocation:    h.handleLocation,
		OnCallback:    h.handleCallback,
	}
}

func (h *Handlers) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	// /chatid is how operators find the id of the moderation group
	if update.Command == "chatid" {
		return h.reply(ctx, update.ChatID, ui.ChatIDMessage(update.ChatID))
	}
	if !update.Private {
		return nil
	}

	switch update.Command {
	case "start":
		h.ensureUser(ctx, update.From)
		return h.send(ctx, update.ChatID, ui.GreetingMessage, ui.MainMenu())
	case "rules":
		return h.reply(ctx, update.ChatID, ui.RulesMessage())
	case "admin":
		return h.startAdminLane(ctx, update.ChatID, update.From)
	default:
		return h.reply(ctx, update.ChatID, ui.HelpMessage)
	}
}

func (h *Handlers) handleMedia(ctx context.Context, update tginfra.MediaUpdate) error {
	if !update.Private {
		return nil
	}
	h.ensureUser(ctx, update.From)

	_, err := h.reports.SubmitMedia(ctx, update.From.UserID, update.FileID, update.Kind, update.Caption)
	if err != nil {
		var limited *reportsvc.RateLimitError
		switch {
		case errors.As(err, &limited):
			return h.reply(ctx, update.ChatID, ui.RateLimitedMessage(limited.RetryAfter))
		case errors.Is(err, reportsvc.ErrUnsupportedMedia):
			return h.reply(ctx, update.ChatID, ui.UnsupportedMediaMessage)
		default:
			return h.fail(ctx, update.ChatID, fmt.Errorf("submit media: %w", err))
		}
	}

	return h.send(ctx, update.ChatID, ui.ChooseCategoryMessage, ui.CategoryMenu())
}

func (h *Handlers) handleUnsupported(ctx context.Context, update tginfra.UnsupportedUpdate) error {
	if !update.Private {
		return nil
	}
	return h.reply(ctx, update.ChatID, ui.UnsupportedMediaMessage)
}

func (h *Handlers) handleText(ctx context.Context, update tginfra.TextUpdate) error {
	if !update.Private {
		return nil
	}

	interaction, ok, err := h.reports.TakePending(ctx, update.From.UserID)
	if err != nil {
		return h.fail(ctx, update.ChatID, fmt.Errorf("take pending interaction: %w", err))
	}
	if !ok {
		return h.reply(ctx, update.ChatID, ui.IdleTextMessage)
	}

	if interaction.Kind == pendingsvc.KindAdminMessage {
		return h.forwardToAdmin(ctx, update.ChatID, update.From, update.Text)
	}

	userID := update.From.UserID
	var enrichment reportsvc.Enrichment
	switch interaction.Detail {
	case enums.DetailKindLocation:
		enrichment, err = h.reports.AttachLocation(ctx, userID, interaction.ReportID, model.Address(update.Text))
	default:
		enrichment, err = h.reports.AttachNote(ctx, userID, interaction.ReportID, update.Text)
	}
	return h.afterDetail(ctx, update.ChatID, userID, interaction, enrichment, err)
}

func (h *Handlers) handleLocation(ctx context.Context, update tginfra.LocationUpdate) error {
	if !update.Private {
		return nil
	}

	userID := update.From.UserID
	interaction, ok, err := h.reports.TakePending(ctx, userID)
	if err != nil {
		return h.fail(ctx, update.ChatID, fmt.Errorf("take pending interaction: %w", err))
	}
	if !ok {
		return h.reply(ctx, update.ChatID, ui.IdleTextMessage)
	}
	if interaction.Kind == pendingsvc.KindAdminMessage {
		// admins only take text; keep waiting for it
		if err := h.reports.RequestAdminMessage(ctx, userID); err != nil {
			return h.fail(ctx, update.ChatID, fmt.Errorf("request admin message: %w", err))
		}
		return h.reply(ctx, update.ChatID, ui.AdminPromptMessage)
	}

	enrichment, err := h.reports.AttachLocation(ctx, userID, interaction.ReportID, model.Coordinates(update.Lat, update.Lon))
	return h.afterDetail(ctx, update.ChatID, userID, interaction, enrichment, err)
}

func (h *Handlers) afterDetail(ctx context.Context, chatID, userID int64, interaction pendingsvc.Interaction, enrichment reportsvc.Enrichment, err error) error {
	if errors.Is(err, reportsvc.ErrEmptyDetail) {
		if err := h.reports.RequestDetail(ctx, userID, interaction.ReportID, interaction.Detail); err != nil {
			return h.replyReportError(ctx, chatID, err)
		}
		return h.reply(ctx, chatID, ui.EmptyDetailMessage)
	}
	if err != nil {
		return h.replyReportError(ctx, chatID, err)
	}
	return h.sendEnrichment(ctx, chatID, enrichment)
}

func (h *Handlers) handleCallback(ctx context.Context, update tginfra.CallbackUpdate) error {
	action, err := callback.Parse(update.Data)
	if err != nil {
		h.logger.Debug("unknown callback data", zap.String("data", update.Data))
		h.answer(ctx, update.CallbackID, ui.UnknownActionMessage)
		return nil
	}

	if action.Kind == callback.KindModerate {
		return h.moderate(ctx, update, action)
	}

	h.answer(ctx, update.CallbackID, "")
	userID := update.From.UserID

	switch action.Kind {
	case callback.KindNewReport:
		return h.reply(ctx, update.ChatID, ui.AskMediaMessage)

	case callback.KindShowRules:
		return h.reply(ctx, update.ChatID, ui.RulesMessage())

	case callback.KindContactAdmin:
		return h.startAdminLane(ctx, update.ChatID, update.From)

	case callback.KindChooseCategory:
		enrichment, err := h.reports.ChooseCategory(ctx, userID, action.Category)
		switch {
		case errors.Is(err, reportsvc.ErrNoOpenReport):
			return h.edit(ctx, update, ui.NoOpenReportMessage, nil)
		case errors.Is(err, reportsvc.ErrUnknownCategory):
			return h.reply(ctx, update.ChatID, ui.UnknownCategoryMessage)
		case err != nil:
			return h.fail(ctx, update.ChatID, fmt.Errorf("choose category: %w", err))
		}
		return h.edit(ctx, update, ui.EnrichmentMessage(enrichment.Report.Category),
			ui.EnrichmentMenu(enrichment.Report.ID, enrichment.HasLocation, enrichment.HasNote))

	case callback.KindAttachDetail:
		if err := h.reports.RequestDetail(ctx, userID, action.ReportID, action.Detail); err != nil {
			return h.replyReportError(ctx, update.ChatID, err)
		}
		if action.Detail == enums.DetailKindLocation {
			return h.reply(ctx, update.ChatID, ui.AskLocationMessage)
		}
		return h.reply(ctx, update.ChatID, ui.AskNoteMessage)

	case callback.KindFinish:
		outcome, err := h.reports.Finish(ctx, userID, action.ReportID)
		if err != nil {
			return h.replyReportError(ctx, update.ChatID, err)
		}
		if outcome == modsvc.OutcomeQueued {
			return h.edit(ctx, update, ui.QueuedMessage, nil)
		}
		return h.edit(ctx, update, ui.PublishedMessage, nil)
	}

	return nil
}

func (h *Handlers) moderate(ctx context.Context, update tginfra.CallbackUpdate, action callback.Action) error {
	if h.moderators.ChatID != 0 && update.ChatID != h.moderators.ChatID {
		h.logger.Warn("moderation callback outside moderation chat",
			zap.Int64("chat_id", update.ChatID),
			zap.Int64("user_id", update.From.UserID),
		)
		h.answer(ctx, update.CallbackID, ui.UnknownActionMessage)
		return nil
	}

	report, err := h.moderation.Decide(ctx, action.ReportID, action.Decision)
	switch {
	case errors.Is(err, modsvc.ErrAlreadyDecided):
		h.answer(ctx, update.CallbackID, ui.AlreadyDecidedMessage)
		if label := resultLabel(report.Status); label != "" {
			return h.edit(ctx, update, ui.ModerationResultCaption(action.ReportID, label), nil)
		}
		return nil
	case errors.Is(err, modsvc.ErrInProgress):
		h.answer(ctx, update.CallbackID, ui.InProgressMessage)
		return nil
	case errors.Is(err, modsvc.ErrReportNotFound):
		h.answer(ctx, update.CallbackID, "")
		return h.reply(ctx, update.ChatID, ui.ReportNotFoundMessage)
	case errors.Is(err, pubsvc.ErrPublish):
		h.answer(ctx, update.CallbackID, "")
		h.logger.Warn("publish approved report", zap.Int64("report_id", action.ReportID), zap.Error(err))
		return h.reply(ctx, update.ChatID, ui.PublishFailedMessage(err))
	case err != nil:
		h.answer(ctx, update.CallbackID, ui.GenericFailureMessage)
		return fmt.Errorf("decide report %d: %w", action.ReportID, err)
	}

	h.answer(ctx, update.CallbackID, "")
	h.logger.Info("moderation decision applied",
		zap.Int64("report_id", report.ID),
		zap.Int64("moderator_id", update.From.UserID),
		zap.String("decision", string(action.Decision)),
	)

	notice := ui.ReportRejectedNotice(report.ID)
	if report.Status == enums.ReportStatusPublished {
		notice = ui.ReportApprovedNotice(report.ID)
	}
	if err := h.messenger.SendText(ctx, tginfra.ChatDestination(report.OwnerID), notice); err != nil {
		h.logger.Warn("notify report author", zap.Int64("report_id", report.ID), zap.Error(err))
	}

	return h.edit(ctx, update, ui.ModerationResultCaption(report.ID, resultLabel(report.Status)), nil)
}

func (h *Handlers) startAdminLane(ctx context.Context, chatID int64, from tginfra.Sender) error {
	if h.admin.IsZero() {
		return h.reply(ctx, chatID, ui.AdminUnavailableMessage)
	}
	if err := h.reports.RequestAdminMessage(ctx, from.UserID); err != nil {
		return h.fail(ctx, chatID, fmt.Errorf("request admin message: %w", err))
	}
	return h.reply(ctx, chatID, ui.AdminPromptMessage)
}

// forwardToAdmin sends the text to the admin destination only. It never
// touches reports or the feed.
func (h *Handlers) forwardToAdmin(ctx context.Context, chatID int64, from tginfra.Sender, text string) error {
	if h.admin.IsZero() {
		return h.reply(ctx, chatID, ui.AdminUnavailableMessage)
	}

	sender := pubsvc.Attributor(model.User{ID: from.UserID, Username: from.Username, DisplayName: from.DisplayName()})
	if err := h.messenger.SendText(ctx, h.admin, ui.AdminInboxMessage(sender, from.UserID, text)); err != nil {
		return h.fail(ctx, chatID, fmt.Errorf("forward admin message: %w", err))
	}

	h.logger.Info("admin message forwarded", zap.Int64("user_id", from.UserID))
	return h.reply(ctx, chatID, ui.AdminSentMessage)
}

func (h *Handlers) replyReportError(ctx context.Context, chatID int64, err error) error {
	switch {
	case errors.Is(err, reportsvc.ErrReportNotFound), errors.Is(err, modsvc.ErrReportNotFound):
		return h.reply(ctx, chatID, ui.ReportNotFoundMessage)
	case errors.Is(err, reportsvc.ErrReportClosed), errors.Is(err, modsvc.ErrAlreadyFinished), errors.Is(err, modsvc.ErrAlreadyDecided):
		return h.reply(ctx, chatID, ui.ReportClosedMessage)
	case errors.Is(err, modsvc.ErrNotFinishable):
		return h.reply(ctx, chatID, ui.NotFinishableMessage)
	case errors.Is(err, modsvc.ErrInProgress):
		return h.reply(ctx, chatID, ui.InProgressMessage)
	case errors.Is(err, reportsvc.ErrEmptyDetail):
		return h.reply(ctx, chatID, ui.EmptyDetailMessage)
	case errors.Is(err, pendingsvc.ErrInvalidInteraction):
		return h.reply(ctx, chatID, ui.UnknownActionMessage)
	case errors.Is(err, pubsvc.ErrPublish):
		h.logger.Warn("publish report", zap.Int64("chat_id", chatID), zap.Error(err))
		return h.reply(ctx, chatID, ui.PublishFailedMessage(err))
	default:
		return h.fail(ctx, chatID, err)
	}
}

func (h *Handlers) sendEnrichment(ctx context.Context, chatID int64, enrichment reportsvc.Enrichment) error {
	return h.send(ctx, chatID, ui.EnrichmentMessage(enrichment.Report.Category),
		ui.EnrichmentMenu(enrichment.Report.ID, enrichment.HasLocation, enrichment.HasNote))
}

func (h *Handlers) ensureUser(ctx context.Context, from tginfra.Sender) {
	_, err := h.reports.EnsureUser(ctx, model.User{
		ID:          from.UserID,
		Username:    from.Username,
		DisplayName: from.DisplayName(),
	})
	if err != nil {
		h.logger.Warn("upsert user", zap.Int64("user_id", from.UserID), zap.Error(err))
	}
}

// fail answers with the generic text and hands the error back for logging.
func (h *Handlers) fail(ctx context.Context, chatID int64, err error) error {
	if replyErr := h.reply(ctx, chatID, ui.GenericFailureMessage); replyErr != nil {
		h.logger.Warn("send failure reply", zap.Int64("chat_id", chatID), zap.Error(replyErr))
	}
	return err
}

func (h *Handlers) reply(ctx context.Context, chatID int64, text string) error {
	return h.messenger.SendText(ctx, tginfra.ChatDestination(chatID), text)
}

func (h *Handlers) send(ctx context.Context, chatID int64, text string, rows [][]tginfra.InlineButton) error {
	return h.messenger.SendInline(ctx, tginfra.ChatDestination(chatID), text, rows)
}

// edit rewrites the message that carried the pressed button.
func (h *Handlers) edit(ctx context.Context, update tginfra.CallbackUpdate, text string, rows [][]tginfra.InlineButton) error {
	if update.OnMedia {
		return h.messenger.EditCaption(ctx, update.ChatID, update.MessageID, text, rows)
	}
	return h.messenger.EditText(ctx, update.ChatID, update.MessageID, text, rows)
}

func (h *Handlers) answer(ctx context.Context, callbackID, text string) {
	if err := h.messenger.AnswerCallback(ctx, callbackID, text); err != nil {
		h.logger.Debug("answer callback", zap.Error(err))
	}
}

func resultLabel(status enums.ReportStatus) string {
	switch status {
	case enums.ReportStatusPublished:
		return ui.ModerationApprovedMessage
	case enums.ReportStatusRejected:
		return ui.ModerationRejectedMessage
	default:
		return ""
	}
}
