// Package callback encodes inline-button payloads. Every button the bot sends
// carries one Action; handlers only see parsed values.
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
)

const separator = "|"

// Telegram rejects callback data longer than this many bytes.
const maxDataLen = 64

var ErrMalformed = errors.New("malformed callback data")

type Kind string

const (
	KindNewReport      Kind = "new"
	KindChooseCategory Kind = "cat"
	KindAttachDetail   Kind = "det"
	KindFinish         Kind = "fin"
	KindModerate       Kind = "mod"
	KindShowRules      Kind = "rules"
	KindContactAdmin   Kind = "admin"
)

type Action struct {
	Kind     Kind
	Category string
	Detail   enums.DetailKind
	Decision enums.Decision
	ReportID int64
}

func NewReport() Action { return Action{Kind: KindNewReport} }

func ChooseCategory(code string) Action { return Action{Kind: KindChooseCategory, Category: code} }

func AttachDetail(kind enums.DetailKind, reportID int64) Action {
	return Action{Kind: KindAttachDetail, Detail: kind, ReportID: reportID}
}

func Finish(reportID int64) Action { return Action{Kind: KindFinish, ReportID: reportID} }

func Moderate(decision enums.Decision, reportID int64) Action {
	return Action{Kind: KindModerate, Decision: decision, ReportID: reportID}
}

func ShowRules() Action { return Action{Kind: KindShowRules} }

func ContactAdmin() Action { return Action{Kind: KindContactAdmin} }

func (a Action) Encode() string {
	id := strconv.FormatInt(a.ReportID, 10)
	switch a.Kind {
	case KindChooseCategory:
		return join(a.Kind, a.Category)
	case KindAttachDetail:
		return join(a.Kind, string(a.Detail), id)
	case KindFinish:
		return join(a.Kind, id)
	case KindModerate:
		return join(a.Kind, string(a.Decision), id)
	default:
		return string(a.Kind)
	}
}

func Parse(data string) (Action, error) {
	data = strings.TrimSpace(data)
	if data == "" || len(data) > maxDataLen {
		return Action{}, ErrMalformed
	}

	parts := strings.Split(data, separator)
	kind := Kind(parts[0])
	args := parts[1:]

	switch kind {
	case KindNewReport, KindShowRules, KindContactAdmin:
		if len(args) != 0 {
			return Action{}, malformed(data)
		}
		return Action{Kind: kind}, nil

	case KindChooseCategory:
		if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
			return Action{}, malformed(data)
		}
		return ChooseCategory(args[0]), nil

	case KindAttachDetail:
		if len(args) != 2 {
			return Action{}, malformed(data)
		}
		detail := enums.DetailKind(args[0])
		id, err := parseID(args[1])
		if err != nil || !detail.Valid() {
			return Action{}, malformed(data)
		}
		return AttachDetail(detail, id), nil

	case KindFinish:
		if len(args) != 1 {
			return Action{}, malformed(data)
		}
		id, err := parseID(args[0])
		if err != nil {
			return Action{}, malformed(data)
		}
		return Finish(id), nil

	case KindModerate:
		if len(args) != 2 {
			return Action{}, malformed(data)
		}
		decision := enums.Decision(args[0])
		id, err := parseID(args[1])
		if err != nil || !decision.Valid() {
			return Action{}, malformed(data)
		}
		return Moderate(decision, id), nil

	default:
		return Action{}, malformed(data)
	}
}

func join(kind Kind, args ...string) string {
	return string(kind) + separator + strings.Join(args, separator)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformed
	}
	return id, nil
}

func malformed(data string) error {
	return fmt.Errorf("%w: %q", ErrMalformed, data)
}
