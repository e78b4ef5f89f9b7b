package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/rules"
)

const (
	GreetingMessage = "👋 Привіт! Надішліть фото або відео порушення ПДР у Запоріжжі.\n" +
		"Після цього оберіть категорію."
	HelpMessage = "ℹ️ Як це працює:\n" +
		"1. Надішліть фото або відео порушення.\n" +
		"2. Оберіть категорію.\n" +
		"3. За бажанням додайте локацію та коментар.\n" +
		"4. Натисніть «Завершити».\n\n" +
		"Команди: /start, /rules, /admin, /chatid"
	AskMediaMessage           = "📸 Надішліть фото або відео порушення."
	ChooseCategoryMessage     = "🚦 Оберіть категорію:"
	UnsupportedMediaMessage   = "📎 Надішліть фото або відео, не документ."
	NoOpenReportMessage       = "⚠️ Немає медіа для категоризації. Спробуйте знову."
	UnknownCategoryMessage    = "⚠️ Невідома категорія."
	AskLocationMessage        = "📍 Надішліть геолокацію (📎 → Геопозиція) або напишіть адресу текстом."
	AskNoteMessage            = "📝 Напишіть коментар одним повідомленням (до 500 символів)."
	EmptyDetailMessage        = "⚠️ Порожнє повідомлення, спробуйте ще раз."
	PublishedMessage          = "✅ Опубліковано в канал. Дякуємо!"
	QueuedMessage             = "🕓 Заявку надіслано на модерацію. Після перевірки її буде опубліковано."
	ReportNotFoundMessage     = "⚠️ Запис не знайдено."
	ReportClosedMessage       = "⚠️ Заявку вже завершено."
	InProgressMessage         = "⏳ Заявка вже обробляється."
	AlreadyDecidedMessage     = "ℹ️ Рішення по заявці вже прийнято."
	AdminPromptMessage        = "✉️ Напишіть повідомлення адміністраторам одним текстом."
	AdminSentMessage          = "✅ Повідомлення надіслано адміністраторам."
	AdminUnavailableMessage   = "⚠️ Зв'язок з адміністраторами зараз недоступний."
	IdleTextMessage           = "📸 Щоб створити заявку, надішліть фото або відео порушення. Меню: /start"
	GenericFailureMessage     = "⚠️ Сталася помилка. Спробуйте пізніше."
	UnknownActionMessage      = "⚠️ Кнопка застаріла."
	PrivateOnlyMessage        = "ℹ️ Надсилайте заявки в особисті повідомлення боту."
	NotFinishableMessage      = "⚠️ Спочатку оберіть категорію."
	ModerationApprovedMessage = "✅ Опубліковано"
	ModerationRejectedMessage = "❌ Відхилено"
)

// RulesMessage lists every category with its rule citation.
func RulesMessage() string {
	var b strings.Builder
	b.WriteString("📋 Правила подання заявок:\n")
	b.WriteString("• лише власні фото або відео з Запоріжжя;\n")
	b.WriteString("• на кадрі має бути видно порушення;\n")
	b.WriteString("• без образ і персональних даних у коментарях.\n\n")
	b.WriteString("Категорії:\n")
	for _, c := range rules.Categories() {
		fmt.Fprintf(&b, "%s (%s)\n", c.Label, rules.RuleCitation(c.Code))
	}
	return strings.TrimRight(b.String(), "\n")
}

func EnrichmentMessage(categoryCode string) string {
	return fmt.Sprintf("🗂 Категорія: %s\nДодайте деталі або завершіть заявку.", rules.CategoryLabel(categoryCode))
}

// RateLimitedMessage rounds the wait up to whole minutes.
func RateLimitedMessage(wait time.Duration) string {
	minutes := int(math.Ceil(wait.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⏳ Забагато заявок за годину. Спробуйте через %d хв.", minutes)
}

func PublishFailedMessage(err error) string {
	return fmt.Sprintf("❌ Не вдалося опублікувати: %v", err)
}

func ChatIDMessage(chatID int64) string {
	return fmt.Sprintf("chat_id: %d", chatID)
}

// AdminInboxMessage is what administrators receive from the admin lane.
func AdminInboxMessage(sender string, userID int64, text string) string {
	return fmt.Sprintf("✉️ Повідомлення від %s (id %d):\n\n%s", sender, userID, text)
}

// ModerationResultCaption replaces the moderation card caption once decided.
func ModerationResultCaption(reportID int64, result string) string {
	return fmt.Sprintf("🛂 Заявка #%d: %s", reportID, result)
}

func ReportApprovedNotice(reportID int64) string {
	return fmt.Sprintf("✅ Вашу заявку #%d схвалено та опубліковано. Дякуємо!", reportID)
}

func ReportRejectedNotice(reportID int64) string {
	return fmt.Sprintf("❌ Вашу заявку #%d відхилено модератором.", reportID)
}
