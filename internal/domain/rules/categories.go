package rules

import "strings"

// GenericRuleCitation is shown for categories without a specific traffic-rule clause.
const GenericRuleCitation = "ПДР: (уточнити)"

type Category struct {
	Code  string
	Label string
}

var categories = []Category{
	{Code: "c1", Label: "🚗 Паркування на тротуарі"},
	{Code: "c2", Label: "🚦 Проїзд на червоне"},
	{Code: "c3", Label: "⛔ Рух по зустрічній"},
	{Code: "c4", Label: "🅿️ Стоянка на зебрі"},
	{Code: "c5", Label: "❗ Інше"},
}

var ruleCitations = map[string]string{
	"c1": "ПДР: п.15.10",
	"c2": "ПДР: п.8.7",
	"c3": "ПДР: п.11.4",
	"c4": "ПДР: п.15.9",
}

// Categories returns the fixed category table in menu order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func LookupCategory(code string) (Category, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range categories {
		if c.Code == code {
			return c, true
		}
	}
	return Category{}, false
}

func CategoryLabel(code string) string {
	if c, ok := LookupCategory(code); ok {
		return c.Label
	}
	return code
}

func RuleCitation(code string) string {
	if citation, ok := ruleCitations[strings.ToLower(strings.TrimSpace(code))]; ok {
		return citation
	}
	return GenericRuleCitation
}
