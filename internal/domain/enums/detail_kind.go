package enums

// DetailKind names an optional report field the user can fill after choosing a category.
type DetailKind string

const (
	DetailKindLocation DetailKind = "location"
	DetailKindNote     DetailKind = "note"
)

func (k DetailKind) Valid() bool {
	return k == DetailKindLocation || k == DetailKindNote
}
