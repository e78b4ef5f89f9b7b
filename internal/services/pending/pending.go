package pending

import (
	"context"
	"errors"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
)

// DefaultTTL bounds how long a user's next message stays reserved.
const DefaultTTL = time.Hour

type Kind string

const (
	KindDetail       Kind = "detail"
	KindAdminMessage Kind = "admin_message"
)

var ErrInvalidInteraction = errors.New("invalid pending interaction")

// Interaction says how the next text or location message of a user is read:
// as a detail for ReportID or as a message for the administrators.
type Interaction struct {
	Kind     Kind
	Detail   enums.DetailKind
	ReportID int64
}

func Detail(kind enums.DetailKind, reportID int64) Interaction {
	return Interaction{Kind: KindDetail, Detail: kind, ReportID: reportID}
}

func AdminMessage() Interaction {
	return Interaction{Kind: KindAdminMessage}
}

func (i Interaction) Validate() error {
	switch i.Kind {
	case KindDetail:
		if !i.Detail.Valid() || i.ReportID <= 0 {
			return ErrInvalidInteraction
		}
	case KindAdminMessage:
	default:
		return ErrInvalidInteraction
	}
	return nil
}

// Store keeps at most one interaction per user. Put replaces, Take consumes.
type Store interface {
	Put(ctx context.Context, userID int64, interaction Interaction) error
	Take(ctx context.Context, userID int64) (Interaction, bool, error)
	Clear(ctx context.Context, userID int64) error
}
