package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

type Sender struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

func (s Sender) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

type CommandUpdate struct {
	ChatID  int64
	Private bool
	From    Sender
	Command string
	Args    string
}

type MediaUpdate struct {
	ChatID  int64
	Private bool
	From    Sender
	Kind    string
	FileID  string
	Caption string
}

// UnsupportedUpdate is an attachment the bot does not accept as evidence.
type UnsupportedUpdate struct {
	ChatID  int64
	Private bool
	From    Sender
	Kind    string
}

type TextUpdate struct {
	ChatID  int64
	Private bool
	From    Sender
	Text    string
}

type LocationUpdate struct {
	ChatID  int64
	Private bool
	From    Sender
	Lat     float64
	Lon     float64
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	MessageID  int
	// OnMedia is set when the pressed button belongs to a photo or video
	// message, whose caption must be edited instead of its text.
	OnMedia bool
	From    Sender
	Data    string
}

type Handlers struct {
	OnCommand     func(context.Context, CommandUpdate) error
	OnMedia       func(context.Context, MediaUpdate) error
	OnUnsupported func(context.Context, UnsupportedUpdate) error
	OnText        func(context.Context, TextUpdate) error
	OnLocation    func(context.Context, LocationUpdate) error
	OnCallback    func(context.Context, CallbackUpdate) error
}

// Dispatch routes one update to the matching handler. Updates nobody handles
// are dropped.
func (h Handlers) Dispatch(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		if h.OnCallback == nil {
			return nil
		}
		return h.OnCallback(ctx, callbackUpdate(update.CallbackQuery))
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}

	chatID := msg.Chat.ID
	private := msg.Chat.IsPrivate()
	from := senderOf(msg.From)

	if msg.IsCommand() {
		if h.OnCommand == nil {
			return nil
		}
		return h.OnCommand(ctx, CommandUpdate{
			ChatID:  chatID,
			Private: private,
			From:    from,
			Command: strings.ToLower(msg.Command()),
			Args:    strings.TrimSpace(msg.CommandArguments()),
		})
	}

	if kind, fileID := mediaOf(msg); kind != "" {
		if h.OnMedia == nil {
			return nil
		}
		return h.OnMedia(ctx, MediaUpdate{
			ChatID:  chatID,
			Private: private,
			From:    from,
			Kind:    kind,
			FileID:  fileID,
			Caption: strings.TrimSpace(msg.Caption),
		})
	}

	if kind := unsupportedKind(msg); kind != "" {
		if h.OnUnsupported == nil {
			return nil
		}
		return h.OnUnsupported(ctx, UnsupportedUpdate{ChatID: chatID, Private: private, From: from, Kind: kind})
	}

	if msg.Location != nil {
		if h.OnLocation == nil {
			return nil
		}
		return h.OnLocation(ctx, LocationUpdate{
			ChatID:  chatID,
			Private: private,
			From:    from,
			Lat:     msg.Location.Latitude,
			Lon:     msg.Location.Longitude,
		})
	}

	text := strings.TrimSpace(msg.Text)
	if text != "" && h.OnText != nil {
		return h.OnText(ctx, TextUpdate{ChatID: chatID, Private: private, From: from, Text: text})
	}

	return nil
}

func callbackUpdate(q *tgbotapi.CallbackQuery) CallbackUpdate {
	out := CallbackUpdate{
		CallbackID: q.ID,
		From:       senderOf(q.From),
		Data:       q.Data,
	}
	if q.Message != nil {
		if q.Message.Chat != nil {
			out.ChatID = q.Message.Chat.ID
		}
		out.MessageID = q.Message.MessageID
		out.OnMedia = len(q.Message.Photo) > 0 || q.Message.Video != nil
	}
	return out
}

func senderOf(u *tgbotapi.User) Sender {
	return Sender{
		UserID:    u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// mediaOf picks the largest photo size; Telegram lists them ascending.
func mediaOf(msg *tgbotapi.Message) (string, string) {
	if n := len(msg.Photo); n > 0 {
		return MediaPhoto, msg.Photo[n-1].FileID
	}
	if msg.Video != nil {
		return MediaVideo, msg.Video.FileID
	}
	return "", ""
}

func unsupportedKind(msg *tgbotapi.Message) string {
	switch {
	case msg.Animation != nil:
		return "animation"
	case msg.Document != nil:
		return "document"
	case msg.Audio != nil:
		return "audio"
	case msg.Voice != nil:
		return "voice"
	case msg.VideoNote != nil:
		return "video_note"
	case msg.Sticker != nil:
		return "sticker"
	default:
		return ""
	}
}
