package ui

import (
	"github.com/ivankudzin/roadreport/internal/domain/enums"
	"github.com/ivankudzin/roadreport/internal/domain/rules"
	"github.com/ivankudzin/roadreport/internal/infra/telegram"
	"github.com/ivankudzin/roadreport/internal/transport/callback"
)

const doneMark = " ✅"

func MainMenu() [][]telegram.InlineButton {
	return [][]telegram.InlineButton{
		{{Text: "📸 Нова заявка", Data: callback.NewReport().Encode()}},
		{{Text: "📋 Правила", Data: callback.ShowRules().Encode()}},
		{{Text: "✉️ Написати адміну", Data: callback.ContactAdmin().Encode()}},
	}
}

func CategoryMenu() [][]telegram.InlineButton {
	categories := rules.Categories()
	rows := make([][]telegram.InlineButton, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []telegram.InlineButton{
			{Text: c.Label, Data: callback.ChooseCategory(c.Code).Encode()},
		})
	}
	return rows
}

// EnrichmentMenu marks details that are already filled.
func EnrichmentMenu(reportID int64, hasLocation, hasNote bool) [][]telegram.InlineButton {
	location := "📍 Додати локацію"
	if hasLocation {
		location = "📍 Локація" + doneMark
	}
	note := "📝 Додати коментар"
	if hasNote {
		note = "📝 Коментар" + doneMark
	}

	return [][]telegram.InlineButton{
		{{Text: location, Data: callback.AttachDetail(enums.DetailKindLocation, reportID).Encode()}},
		{{Text: note, Data: callback.AttachDetail(enums.DetailKindNote, reportID).Encode()}},
		{{Text: "🚀 Завершити", Data: callback.Finish(reportID).Encode()}},
	}
}
