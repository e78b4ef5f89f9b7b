package publisher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/ivankudzin/roadreport/internal/domain/model"
	"github.com/ivankudzin/roadreport/internal/domain/rules"
)

const (
	header = "🚗 Порушення ПДР у Запоріжжі"

	// Telegram caps media captions at 1024 characters counted in UTF-16 code
	// units, so an emoji takes two.
	maxCaptionUnits = 1024
)

// Format renders the post text for a report. An empty attributor omits the
// author line.
func Format(report model.Report, attributor string) string {
	return truncate(render(report, attributor), maxCaptionUnits)
}

// ModerationCaption is the text of the card moderators decide on.
func ModerationCaption(report model.Report, author model.User) string {
	head := fmt.Sprintf("🛂 Заявка #%d на модерацію (довіра: %d)\n\n", report.ID, author.Trust)
	return truncate(head+render(report, Attributor(author)), maxCaptionUnits)
}

func render(report model.Report, attributor string) string {
	lines := []string{
		header,
		"🗂 Категорія: " + rules.CategoryLabel(report.Category),
		"📋 " + rules.RuleCitation(report.Category),
	}

	if attributor = strings.TrimSpace(attributor); attributor != "" {
		lines = append(lines, "👤 Автор: "+attributor)
	}
	if line := locationLine(report.Location); line != "" {
		lines = append(lines, line)
	}
	if note := strings.TrimSpace(report.Note); note != "" {
		lines = append(lines, "📝 "+note)
	}

	text := strings.Join(lines, "\n")
	if caption := strings.TrimSpace(report.Caption); caption != "" {
		text += "\n\n" + caption
	}
	return text
}

// Attributor names the author as @username, else display name, else id.
func Attributor(user model.User) string {
	if username := strings.TrimPrefix(strings.TrimSpace(user.Username), "@"); username != "" {
		return "@" + username
	}
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	if user.ID != 0 {
		return "id " + strconv.FormatInt(user.ID, 10)
	}
	return ""
}

func locationLine(loc model.Location) string {
	if loc.HasGeo {
		return fmt.Sprintf("📍 https://maps.google.com/?q=%.5f,%.5f", loc.Lat, loc.Lon)
	}
	if address := strings.TrimSpace(loc.Address); address != "" {
		return "📍 " + address
	}
	return ""
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncate cuts text to limit UTF-16 units, ellipsis included. Surrogate
// pairs are never split.
func truncate(text string, limit int) string {
	if utf16Len(text) <= limit {
		return text
	}

	budget := limit - 1
	var b strings.Builder
	for _, r := range text {
		size := utf16.RuneLen(r)
		if size > budget {
			break
		}
		budget -= size
		b.WriteRune(r)
	}
	b.WriteString("…")
	return b.String()
}
