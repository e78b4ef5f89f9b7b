package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrDryRun is returned by operations that need the real Bot API.
var ErrDryRun = errors.New("telegram bot runs in dry mode")

type Bot struct {
	api         *tgbotapi.BotAPI
	httpClient  *http.Client
	logger      *zap.Logger
	pollTimeout int
	dryRun      bool
}

// NewBot starts in dry mode when the token is empty: sends are logged and
// dropped, nothing is received.
func NewBot(token string, pollTimeout int, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	bot := &Bot{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
		pollTimeout: pollTimeout,
	}

	if strings.TrimSpace(token) == "" {
		bot.dryRun = true
		return bot, nil
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}
	bot.api = api
	return bot, nil
}

func (b *Bot) DryRun() bool {
	return b == nil || b.dryRun
}

// Listen long-polls updates until ctx is done. Handler errors are logged and
// do not stop the loop.
func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if b.dryRun {
		b.logger.Warn("BOT_TOKEN is empty, running in dry mode")
		<-ctx.Done()
		return nil
	}

	// a webhook left over from webhook mode blocks getUpdates
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("delete telegram webhook failed", zap.Error(err))
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, handlers, update)
		}
	}
}

// Handle processes a single update, from polling or from the webhook.
func (b *Bot) Handle(ctx context.Context, handlers Handlers, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("telegram update handler panicked", zap.Int("update_id", update.UpdateID), zap.Any("panic", rec))
		}
	}()

	if err := handlers.Dispatch(ctx, update); err != nil {
		b.logger.Error("handle telegram update", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

func (b *Bot) SendText(ctx context.Context, dest Destination, text string) error {
	return b.SendInline(ctx, dest, text, nil)
}

func (b *Bot) SendInline(ctx context.Context, dest Destination, text string, rows [][]InlineButton) error {
	if dest.IsZero() {
		return fmt.Errorf("destination is required")
	}

	msg := tgbotapi.NewMessage(dest.ChatID, text)
	msg.ChannelUsername = dest.Username
	if markup := replyMarkup(rows); markup != nil {
		msg.ReplyMarkup = markup
	}

	if err := b.send(ctx, msg); err != nil {
		return fmt.Errorf("send telegram message to %s: %w", dest, err)
	}
	return nil
}

// SendMedia posts a photo or video by Telegram file id with a caption.
func (b *Bot) SendMedia(ctx context.Context, dest Destination, kind, fileID, caption string, rows [][]InlineButton) error {
	if dest.IsZero() {
		return fmt.Errorf("destination is required")
	}
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("file id is required")
	}

	file := tgbotapi.FileID(fileID)
	markup := replyMarkup(rows)

	var msg tgbotapi.Chattable
	switch kind {
	case MediaPhoto:
		cfg := tgbotapi.NewPhoto(dest.ChatID, file)
		cfg.ChannelUsername = dest.Username
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = markup
		}
		msg = cfg
	case MediaVideo:
		cfg := tgbotapi.NewVideo(dest.ChatID, file)
		cfg.ChannelUsername = dest.Username
		cfg.Caption = caption
		if markup != nil {
			cfg.ReplyMarkup = markup
		}
		msg = cfg
	default:
		return fmt.Errorf("unsupported media kind %q", kind)
	}

	if err := b.send(ctx, msg); err != nil {
		return fmt.Errorf("send telegram %s to %s: %w", kind, dest, err)
	}
	return nil
}

// EditText replaces the text and buttons of a message; nil rows drop the buttons.
func (b *Bot) EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]InlineButton) error {
	if chatID == 0 || messageID == 0 {
		return fmt.Errorf("message reference is required")
	}

	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ReplyMarkup = replyMarkup(rows)
	if err := b.send(ctx, cfg); err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}
	return nil
}

func (b *Bot) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, rows [][]InlineButton) error {
	if chatID == 0 || messageID == 0 {
		return fmt.Errorf("message reference is required")
	}

	cfg := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	cfg.ReplyMarkup = replyMarkup(rows)
	if err := b.send(ctx, cfg); err != nil {
		return fmt.Errorf("edit telegram caption: %w", err)
	}
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}
	if b.DryRun() {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// DownloadFile streams a file the user sent to the bot.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, int64, string, string, error) {
	if b.DryRun() {
		return nil, 0, "", "", ErrDryRun
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, 0, "", "", fmt.Errorf("file id is required")
	}

	tgFile, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("get telegram file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tgFile.Link(b.api.Token), nil)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("create file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("download telegram file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, "", "", fmt.Errorf("unexpected telegram file status: %d", resp.StatusCode)
	}

	name := path.Base(strings.TrimSpace(tgFile.FilePath))
	if name == "." || name == "/" || name == "" {
		name = fileID
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeByExt(name)
	}

	return resp.Body, resp.ContentLength, name, contentType, nil
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.Chattable) error {
	if b == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if b.dryRun {
		b.logger.Debug("dry run: telegram send skipped")
		return nil
	}

	if _, err := b.api.Send(msg); err != nil {
		return err
	}

	_ = ctx
	return nil
}

func contentTypeByExt(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
